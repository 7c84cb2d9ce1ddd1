package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"reelocator/internal/models"
	"reelocator/internal/vision"
)

// ParallelEngine fans the identical frame set out to a fixed number of
// independent inference workers and collects one candidate per worker.
//
// All workers run to completion: a fast failure does not cancel in-flight
// calls, and no result surfaces until every worker has returned. Whether a
// failure should cancel the remaining workers is left as-is on purpose;
// the per-run cost is bounded by the worker count.
type ParallelEngine struct {
	svc     vision.Service
	workers int
	logger  *slog.Logger
}

// NewParallelEngine builds an engine with a fixed worker count. Counts
// below one are clamped to one.
func NewParallelEngine(svc vision.Service, workers int, logger *slog.Logger) *ParallelEngine {
	if workers < 1 {
		workers = 1
	}
	return &ParallelEngine{svc: svc, workers: workers, logger: logger}
}

// Workers returns the fixed fan-out width.
func (e *ParallelEngine) Workers() int { return e.workers }

// Analyze dispatches one inference call per worker, all against the same
// frames, and returns the candidates indexed by dispatch order. If any
// worker fails the whole batch is discarded; there is no partial-success
// mode.
func (e *ParallelEngine) Analyze(ctx context.Context, frames models.FrameSet) ([]models.LocationCandidate, error) {
	e.logger.Info("starting parallel vision",
		"workers", e.workers,
		"frames", frames.Len(),
	)

	results := make([]models.LocationCandidate, e.workers)
	errs := make([]error, e.workers)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			e.logger.Debug("dispatching frames to worker", "worker", worker)

			candidate, err := e.svc.AnalyzeFrames(ctx, frames)
			if err != nil {
				errs[worker] = err
				e.logger.Debug("worker failed", "worker", worker, "error", err)
				return
			}

			results[worker] = candidate
			e.logger.Debug("worker finished inference", "worker", worker)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("inference worker %d: %w", i, err)
		}
	}

	e.logger.Info("completed parallel inference", "results", len(results))
	return results, nil
}
