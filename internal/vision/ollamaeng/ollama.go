// Package ollamaeng runs inference against a local Ollama instance through
// the agent-api provider, for use without any hosted-model credentials.
//
// Ollama vision models take one image per call, so the frame set is
// analyzed frame by frame and the per-frame candidates are merged by mean
// landmark confidence, mirroring the aggregation rule of the parallel
// engine.
package ollamaeng

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"

	"reelocator/internal/models"
	"reelocator/internal/vision"
)

const systemPrompt = "You are a travel reel analysis assistant. " +
	"Answer exactly in the format the user requests, with no extra prose."

type Engine struct {
	agent *agent.Agent
}

// New connects an agent to the Ollama instance at baseURL:port and pins it
// to the given vision-capable model.
func New(ctx context.Context, logger *slog.Logger, baseURL string, port int, model string) (*Engine, error) {
	l := logr.FromSlogHandler(logger.Handler())

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		BaseURL: baseURL,
		Port:    port,
		Logger:  &l,
	})
	if err := provider.UseModel(ctx, &core.Model{ID: model}); err != nil {
		return nil, fmt.Errorf("ollama model %s: %w", model, err)
	}

	a, err := agent.NewAgent(
		bootstrap.WithProvider(provider),
		bootstrap.WithLogger(&l),
		bootstrap.WithSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama agent: %w", err)
	}
	return &Engine{agent: a}, nil
}

func (e *Engine) Name() string { return "ollama" }

func (e *Engine) AnalyzeFrames(ctx context.Context, frames models.FrameSet) (models.LocationCandidate, error) {
	var best models.LocationCandidate
	bestScore := -1.0

	for _, path := range frames.Paths {
		text, err := e.run(ctx, vision.VisionPrompt, path)
		if err != nil {
			return models.LocationCandidate{}, fmt.Errorf("ollama frame %s: %w", path, err)
		}

		var candidate models.LocationCandidate
		if err := json.Unmarshal([]byte(vision.StripCodeFences(text)), &candidate); err != nil {
			return models.LocationCandidate{}, fmt.Errorf("ollama frame %s: bad JSON: %w", path, err)
		}

		if score := meanLandmarkConfidence(candidate); score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	if bestScore < 0 {
		return models.LocationCandidate{}, fmt.Errorf("ollama: no frames to analyze")
	}
	return best, nil
}

func (e *Engine) RefineLocation(ctx context.Context, candidate models.LocationCandidate) (models.LocationCandidate, error) {
	payload, err := json.Marshal(candidate)
	if err != nil {
		return models.LocationCandidate{}, fmt.Errorf("marshal candidate: %w", err)
	}

	text, err := e.run(ctx, vision.GeoPrompt+"\n"+string(payload), "")
	if err != nil {
		return models.LocationCandidate{}, fmt.Errorf("ollama refine: %w", err)
	}

	var out models.LocationCandidate
	if err := json.Unmarshal([]byte(vision.StripCodeFences(text)), &out); err != nil {
		return models.LocationCandidate{}, fmt.Errorf("ollama refine: bad JSON: %w", err)
	}
	return out, nil
}

func (e *Engine) ComposeItinerary(ctx context.Context, location models.LocationCandidate, places []models.Place, days int) (string, error) {
	text, err := e.run(ctx, vision.ItineraryPrompt(location, places, days), "")
	if err != nil {
		return "", fmt.Errorf("ollama itinerary: %w", err)
	}
	return text, nil
}

func (e *Engine) run(ctx context.Context, prompt, imagePath string) (string, error) {
	opts := []agent.RunOptionFunc{agent.WithInput(prompt)}
	if imagePath != "" {
		opts = append(opts, agent.WithImagePath(imagePath))
	}

	response, err := e.agent.Run(ctx, opts...)
	if err != nil {
		return "", err
	}

	last := response.Pop()
	if last == nil || strings.TrimSpace(last.Content) == "" {
		return "", vision.ErrEmptyResponse
	}
	return last.Content, nil
}

func meanLandmarkConfidence(c models.LocationCandidate) float64 {
	if len(c.Landmarks) == 0 {
		return 0
	}
	var sum float64
	for _, lm := range c.Landmarks {
		sum += lm.Confidence
	}
	return sum / float64(len(c.Landmarks))
}
