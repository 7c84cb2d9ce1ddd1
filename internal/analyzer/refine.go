package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"reelocator/internal/models"
	"reelocator/internal/vision"
)

// Defaults for the refinement loop.
const (
	DefaultThreshold = 0.70
	DefaultMaxIters  = 3
)

// RefinementLoop iteratively improves an aggregated candidate through a
// geo normalizer, bounded by MaxIters with two early-stop conditions:
// reaching Threshold, or a confidence that stopped improving.
//
// Both early stops return the candidate computed in that iteration - for
// the no-improvement stop that is the candidate whose confidence was just
// rejected, not the previously accepted one. When the loop exhausts
// MaxIters it returns the last accepted candidate; exhaustion requires
// every iteration to have been accepted, so this is equally the most
// recently computed one.
type RefinementLoop struct {
	Threshold float64
	MaxIters  int
	logger    *slog.Logger
}

// NewRefinementLoop builds a loop with the default threshold and bound.
func NewRefinementLoop(logger *slog.Logger) *RefinementLoop {
	return &RefinementLoop{
		Threshold: DefaultThreshold,
		MaxIters:  DefaultMaxIters,
		logger:    logger,
	}
}

// Refine runs the loop. It returns the final candidate and the number of
// normalizer iterations consumed, always in [1, MaxIters] once the loop
// has run. Normalizer errors propagate untouched; there is no retry.
func (l *RefinementLoop) Refine(ctx context.Context, initial models.LocationCandidate, normalizer vision.Normalizer) (models.LocationCandidate, int, error) {
	l.logger.Info("starting refinement loop",
		"threshold", l.Threshold,
		"max_iters", l.MaxIters,
	)

	current := initial
	lastAccepted := initial.Confidence
	iters := 0

	for i := 0; i < l.MaxIters; i++ {
		iters++

		refined, err := normalizer.RefineLocation(ctx, current)
		if err != nil {
			return models.LocationCandidate{}, iters, fmt.Errorf("refinement iteration %d: %w", iters, err)
		}

		newConfidence := refined.Confidence
		l.logger.Debug("refinement iteration",
			"iteration", iters,
			"confidence", newConfidence,
		)

		if newConfidence >= l.Threshold {
			l.logger.Info("threshold met, stopping early", "iterations", iters)
			return refined, iters, nil
		}

		if newConfidence <= lastAccepted {
			// returns the just-computed candidate even though its
			// confidence was rejected for improvement
			l.logger.Info("confidence stopped improving, stopping", "iterations", iters)
			return refined, iters, nil
		}

		current = refined
		lastAccepted = newConfidence
	}

	l.logger.Info("max iterations reached", "iterations", iters)
	return current, iters, nil
}
