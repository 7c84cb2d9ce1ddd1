// Package vision defines the inference collaborators the location pipeline
// depends on. Each provider package implements these against a concrete
// model API; the pipeline itself only sees the interfaces.
package vision

import (
	"context"
	"errors"
	"fmt"

	"reelocator/internal/models"
)

// Service proposes a location from a set of frames. One call covers the
// whole frame set; implementations are stateless request/response clients.
type Service interface {
	Name() string
	AnalyzeFrames(ctx context.Context, frames models.FrameSet) (models.LocationCandidate, error)
}

// Normalizer refines a tentative location: normalized city/country names,
// a region, and an overall confidence for the refined candidate.
type Normalizer interface {
	Name() string
	RefineLocation(ctx context.Context, candidate models.LocationCandidate) (models.LocationCandidate, error)
}

// Composer turns a final location plus nearby places into itinerary text.
type Composer interface {
	ComposeItinerary(ctx context.Context, location models.LocationCandidate, places []models.Place, days int) (string, error)
}

// ErrEmptyResponse is returned when a provider answers with no usable text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Engine bundles the three capabilities one provider offers.
type Engine interface {
	Service
	Normalizer
	Composer
}

// Engines holds the configured providers, keyed for lookup by name.
type Engines struct {
	Gemini Engine
	OpenAI Engine
	Ollama Engine
}

// Get returns the engine for a provider name.
func (e *Engines) Get(provider string) (Engine, error) {
	switch provider {
	case "gemini":
		if e.Gemini == nil {
			return nil, fmt.Errorf("gemini engine is not configured")
		}
		return e.Gemini, nil
	case "openai", "gpt":
		if e.OpenAI == nil {
			return nil, fmt.Errorf("openai engine is not configured")
		}
		return e.OpenAI, nil
	case "ollama":
		if e.Ollama == nil {
			return nil, fmt.Errorf("ollama engine is not configured")
		}
		return e.Ollama, nil
	default:
		return nil, fmt.Errorf("unknown provider %q; use 'gemini', 'openai' or 'ollama'", provider)
	}
}
