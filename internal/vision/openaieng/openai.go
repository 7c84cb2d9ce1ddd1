// Package openaieng implements the inference contracts against an
// OpenAI-compatible chat completions endpoint.
package openaieng

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"reelocator/internal/models"
	"reelocator/internal/vision"
)

type Engine struct {
	client *openai.Client
	model  string
}

// New builds an engine against api.openai.com or, when baseURL is set, any
// compatible gateway.
func New(apiKey, baseURL, model string) *Engine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Engine{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) AnalyzeFrames(ctx context.Context, frames models.FrameSet) (models.LocationCandidate, error) {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: vision.VisionPrompt},
	}
	for _, path := range frames.Paths {
		url, err := frameDataURL(path)
		if err != nil {
			return models.LocationCandidate{}, err
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: url},
		})
	}

	return e.completeCandidate(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, MultiContent: parts},
	})
}

func (e *Engine) RefineLocation(ctx context.Context, candidate models.LocationCandidate) (models.LocationCandidate, error) {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return models.LocationCandidate{}, fmt.Errorf("marshal candidate: %w", err)
	}

	return e.completeCandidate(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: vision.GeoPrompt + "\n" + string(payload)},
	})
}

func (e *Engine) ComposeItinerary(ctx context.Context, location models.LocationCandidate, places []models.Place, days int) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: vision.ItineraryPrompt(location, places, days)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai itinerary: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("openai itinerary: %w", vision.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *Engine) completeCandidate(ctx context.Context, messages []openai.ChatCompletionMessage) (models.LocationCandidate, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return models.LocationCandidate{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.LocationCandidate{}, fmt.Errorf("openai: %w", vision.ErrEmptyResponse)
	}

	text := vision.StripCodeFences(resp.Choices[0].Message.Content)
	if text == "" {
		return models.LocationCandidate{}, fmt.Errorf("openai: %w", vision.ErrEmptyResponse)
	}

	var out models.LocationCandidate
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return models.LocationCandidate{}, fmt.Errorf("openai: bad JSON: %w", err)
	}
	return out, nil
}

func frameDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read frame %s: %w", path, err)
	}
	m := mime.TypeByExtension(filepath.Ext(path))
	if m == "" {
		m = "image/jpeg"
	}
	return "data:" + m + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
