// Package analyzer contains the location inference core: concurrent
// fan-out across vision workers, confidence-based aggregation, the bounded
// refinement loop, and the pipeline that composes them.
package analyzer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"reelocator/internal/metrics"
	"reelocator/internal/models"
	"reelocator/internal/vision"
)

// FrameExtractor produces the frame set a pipeline run works on. It fails
// when the video is unreadable or yields zero usable frames.
type FrameExtractor interface {
	ExtractKeyFrames(ctx context.Context, videoPath, outputDir string, maxFrames int) (models.FrameSet, error)
}

// PlacesSearcher finds real points of interest for a city.
type PlacesSearcher interface {
	Search(ctx context.Context, city, placeType string, maxResults int) ([]models.Place, error)
}

// RunStore persists completed analysis runs. Persistence failures are
// logged, not fatal: the caller still gets their result.
type RunStore interface {
	SaveRun(ctx context.Context, run models.AnalysisRun) error
}

// Pipeline composes extraction, parallel inference, aggregation and
// refinement into the analyze-location operation, and optionally extends
// it with places search and itinerary composition. Every stage writes the
// shared metrics store; every failure comes back tagged with its stage.
type Pipeline struct {
	extractor FrameExtractor
	engine    vision.Engine
	places    PlacesSearcher
	store     RunStore
	metrics   *metrics.Store
	logger    *slog.Logger
	workers   int
}

// PipelineConfig carries the collaborators a Pipeline needs. Places and
// Store may be nil; the corresponding stages are skipped.
type PipelineConfig struct {
	Extractor FrameExtractor
	Engine    vision.Engine
	Places    PlacesSearcher
	Store     RunStore
	Metrics   *metrics.Store
	Logger    *slog.Logger
	Workers   int
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	workers := cfg.Workers
	if workers < 1 {
		workers = 3
	}
	return &Pipeline{
		extractor: cfg.Extractor,
		engine:    cfg.Engine,
		places:    cfg.Places,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		workers:   workers,
	}
}

// AnalyzeLocation runs extract -> fan-out -> aggregate -> refine and
// returns the final candidate, the refinement iterations used, and the
// frame set the result was derived from.
func (p *Pipeline) AnalyzeLocation(ctx context.Context, videoPath, outputDir string, maxFrames int) (models.LocationCandidate, int, models.FrameSet, error) {
	frames, err := p.extractFrames(ctx, videoPath, outputDir, maxFrames)
	if err != nil {
		return models.LocationCandidate{}, 0, models.FrameSet{}, stageErr("frame_extraction", err)
	}

	aggregated, err := p.inferLocation(ctx, frames)
	if err != nil {
		return models.LocationCandidate{}, 0, frames, err
	}

	refined, iters, err := p.refineLocation(ctx, aggregated)
	if err != nil {
		return models.LocationCandidate{}, iters, frames, stageErr("geo_refinement", err)
	}

	return refined, iters, frames, nil
}

// PlanItinerary extends AnalyzeLocation with places search, itinerary
// composition, and run persistence.
func (p *Pipeline) PlanItinerary(ctx context.Context, videoPath, outputDir string, maxFrames, days int) (models.AnalysisRun, []models.Place, error) {
	location, iters, frames, err := p.AnalyzeLocation(ctx, videoPath, outputDir, maxFrames)
	if err != nil {
		return models.AnalysisRun{}, nil, err
	}

	var places []models.Place
	if p.places != nil {
		places, err = p.searchPlaces(ctx, location)
		if err != nil {
			return models.AnalysisRun{}, nil, stageErr("places_search", err)
		}
	}

	itinerary, err := p.composeItinerary(ctx, location, places, days)
	if err != nil {
		return models.AnalysisRun{}, places, stageErr("itinerary_generation", err)
	}

	run := models.AnalysisRun{
		ID:         uuid.NewString(),
		VideoName:  frames.VideoName,
		Location:   location,
		Iterations: iters,
		FrameCount: frames.Len(),
		Itinerary:  itinerary,
	}

	if p.store != nil {
		if err := p.store.SaveRun(ctx, run); err != nil {
			p.logger.Warn("failed to persist run", "run_id", run.ID, "error", err)
		}
	}

	return run, places, nil
}

func (p *Pipeline) extractFrames(ctx context.Context, videoPath, outputDir string, maxFrames int) (models.FrameSet, error) {
	defer p.metrics.Timer("frame_extraction")()

	frames, err := p.extractor.ExtractKeyFrames(ctx, videoPath, outputDir, maxFrames)
	if err != nil {
		return models.FrameSet{}, err
	}
	p.metrics.Add("frames_extracted", int64(frames.Len()))
	return frames, nil
}

func (p *Pipeline) inferLocation(ctx context.Context, frames models.FrameSet) (models.LocationCandidate, error) {
	stop := p.metrics.Timer("vision_parallel")

	engine := NewParallelEngine(p.engine, p.workers, p.logger)
	results, err := engine.Analyze(ctx, frames)
	stop()

	p.metrics.Inc("vision_parallel_calls")
	p.metrics.RecordLatency("vision_parallel_latency", p.metrics.Timing("vision_parallel"))

	if err != nil {
		return models.LocationCandidate{}, stageErr("vision_parallel", err)
	}

	aggregated, err := Aggregate(results)
	if err != nil {
		return models.LocationCandidate{}, stageErr("aggregation", err)
	}
	return aggregated, nil
}

func (p *Pipeline) refineLocation(ctx context.Context, aggregated models.LocationCandidate) (models.LocationCandidate, int, error) {
	stop := p.metrics.Timer("geo_refinement")

	loop := NewRefinementLoop(p.logger)
	refined, iters, err := loop.Refine(ctx, aggregated, p.engine)
	stop()

	p.metrics.Add("geo_refinement_iterations", int64(iters))
	p.metrics.RecordLatency("geo_refinement_latency", p.metrics.Timing("geo_refinement"))

	return refined, iters, err
}

func (p *Pipeline) searchPlaces(ctx context.Context, location models.LocationCandidate) ([]models.Place, error) {
	stop := p.metrics.Timer("places_api")

	city := location.City
	if location.Country != "" {
		city = location.City + ", " + location.Country
	}
	places, err := p.places.Search(ctx, city, "tourist_attraction", 20)
	stop()

	p.metrics.RecordLatency("places_latency", p.metrics.Timing("places_api"))
	return places, err
}

func (p *Pipeline) composeItinerary(ctx context.Context, location models.LocationCandidate, places []models.Place, days int) (string, error) {
	stop := p.metrics.Timer("itinerary_generation")

	itinerary, err := p.engine.ComposeItinerary(ctx, location, places, days)
	stop()

	p.metrics.RecordLatency("itinerary_latency", p.metrics.Timing("itinerary_generation"))
	return itinerary, err
}
