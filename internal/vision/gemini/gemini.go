// Package gemini implements the vision, normalizer and composer contracts
// against the Google Gemini API with strict-JSON responses.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"reelocator/internal/models"
	"reelocator/internal/vision"
)

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string { return "gemini" }

// AnalyzeFrames sends the prompt plus every frame as an inline blob and
// decodes the strict-JSON location reply.
func (e *Engine) AnalyzeFrames(ctx context.Context, frames models.FrameSet) (models.LocationCandidate, error) {
	parts := []genai.Part{genai.Text(vision.VisionPrompt)}

	for _, path := range frames.Paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return models.LocationCandidate{}, fmt.Errorf("read frame %s: %w", path, err)
		}
		parts = append(parts, &genai.Blob{
			MIMEType: frameMIME(path),
			Data:     data,
		})
	}

	return e.generateCandidate(ctx, parts)
}

// RefineLocation feeds the candidate back through the model with the
// normalization prompt.
func (e *Engine) RefineLocation(ctx context.Context, candidate models.LocationCandidate) (models.LocationCandidate, error) {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return models.LocationCandidate{}, fmt.Errorf("marshal candidate: %w", err)
	}

	parts := []genai.Part{
		genai.Text(vision.GeoPrompt),
		genai.Text(string(payload)),
	}
	return e.generateCandidate(ctx, parts)
}

// ComposeItinerary is a plain text completion; no JSON mode.
func (e *Engine) ComposeItinerary(ctx context.Context, location models.LocationCandidate, places []models.Place, days int) (string, error) {
	cl, err := e.client(ctx)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	resp, err := m.GenerateContent(ctx, genai.Text(vision.ItineraryPrompt(location, places, days)))
	if err != nil {
		return "", fmt.Errorf("gemini itinerary: %w", err)
	}
	text := firstText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini itinerary: %w", vision.ErrEmptyResponse)
	}
	return text, nil
}

func (e *Engine) client(ctx context.Context) (*genai.Client, error) {
	if e.APIKey == "" {
		return nil, errors.New("gemini: api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return cl, nil
}

func (e *Engine) generateCandidate(ctx context.Context, parts []genai.Part) (models.LocationCandidate, error) {
	cl, err := e.client(ctx)
	if err != nil {
		return models.LocationCandidate{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return models.LocationCandidate{}, fmt.Errorf("gemini: %w", err)
	}

	text := firstText(resp)
	if text == "" {
		return models.LocationCandidate{}, fmt.Errorf("gemini: %w", vision.ErrEmptyResponse)
	}
	text = vision.StripCodeFences(text)

	var out models.LocationCandidate
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return models.LocationCandidate{}, fmt.Errorf("gemini: bad JSON: %w", err)
	}
	return out, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok && strings.TrimSpace(string(t)) != "" {
				return string(t)
			}
		}
	}
	return ""
}

func frameMIME(path string) string {
	if m := mime.TypeByExtension(filepath.Ext(path)); m != "" {
		return m
	}
	return "image/jpeg"
}

func ptrFloat32(v float32) *float32 { return &v }
