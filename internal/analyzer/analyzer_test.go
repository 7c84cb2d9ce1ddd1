package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reelocator/internal/metrics"
	"reelocator/internal/models"
)

type fakeExtractor struct {
	frames models.FrameSet
	err    error
}

func (f *fakeExtractor) ExtractKeyFrames(ctx context.Context, videoPath, outputDir string, maxFrames int) (models.FrameSet, error) {
	return f.frames, f.err
}

type fakeEngine struct {
	visionErr   error
	refineErr   error
	composeErr  error
	refineConf  float64
	itinerary   string
	refineCalls int
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) AnalyzeFrames(ctx context.Context, frames models.FrameSet) (models.LocationCandidate, error) {
	if f.visionErr != nil {
		return models.LocationCandidate{}, f.visionErr
	}
	return models.LocationCandidate{
		City:    "Rome",
		Country: "Italy",
		Landmarks: []models.Landmark{
			{Name: "Colosseum", Confidence: 0.9},
			{Name: "Trevi Fountain", Confidence: 0.7},
		},
	}, nil
}

func (f *fakeEngine) RefineLocation(ctx context.Context, c models.LocationCandidate) (models.LocationCandidate, error) {
	f.refineCalls++
	if f.refineErr != nil {
		return models.LocationCandidate{}, f.refineErr
	}
	refined := c
	refined.Region = "Europe"
	refined.Confidence = f.refineConf
	return refined, nil
}

func (f *fakeEngine) ComposeItinerary(ctx context.Context, loc models.LocationCandidate, places []models.Place, days int) (string, error) {
	if f.composeErr != nil {
		return "", f.composeErr
	}
	return f.itinerary, nil
}

type fakePlaces struct {
	places []models.Place
	err    error
}

func (f *fakePlaces) Search(ctx context.Context, city, placeType string, maxResults int) ([]models.Place, error) {
	return f.places, f.err
}

type fakeStore struct {
	saved []models.AnalysisRun
	err   error
}

func (f *fakeStore) SaveRun(ctx context.Context, run models.AnalysisRun) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, run)
	return nil
}

func pipelineFixture(engine *fakeEngine, extractor *fakeExtractor, places *fakePlaces, store *fakeStore) (*Pipeline, *metrics.Store) {
	m := metrics.NewStore()
	cfg := PipelineConfig{
		Extractor: extractor,
		Engine:    engine,
		Metrics:   m,
		Logger:    testLogger(),
		Workers:   3,
	}
	if places != nil {
		cfg.Places = places
	}
	if store != nil {
		cfg.Store = store
	}
	return NewPipeline(cfg), m
}

func okExtractor() *fakeExtractor {
	return &fakeExtractor{frames: models.FrameSet{
		VideoName: "reel",
		Paths:     []string{"f0.jpg", "f1.jpg", "f2.jpg"},
	}}
}

func TestAnalyzeLocationHappyPath(t *testing.T) {
	engine := &fakeEngine{refineConf: 0.9}
	pipeline, m := pipelineFixture(engine, okExtractor(), nil, nil)

	location, iters, frames, err := pipeline.AnalyzeLocation(context.Background(), "reel.mp4", "out", 8)
	if err != nil {
		t.Fatalf("AnalyzeLocation failed: %v", err)
	}
	if location.City != "Rome" || location.Region != "Europe" {
		t.Errorf("unexpected location: %+v", location)
	}
	if iters != 1 {
		t.Errorf("threshold met first iteration, expected 1 iter, got %d", iters)
	}
	if frames.Len() != 3 {
		t.Errorf("expected the frame set to surface, got %d frames", frames.Len())
	}

	snap := m.Snapshot()
	if snap.Counters["frames_extracted"] != 3 {
		t.Errorf("frames_extracted = %d", snap.Counters["frames_extracted"])
	}
	if snap.Counters["vision_parallel_calls"] != 1 {
		t.Errorf("vision_parallel_calls = %d", snap.Counters["vision_parallel_calls"])
	}
	if snap.Counters["geo_refinement_iterations"] != 1 {
		t.Errorf("geo_refinement_iterations = %d", snap.Counters["geo_refinement_iterations"])
	}
	if _, ok := snap.Timings["vision_parallel"]; !ok {
		t.Error("vision_parallel timing missing")
	}
}

func stageOf(t *testing.T, err error) string {
	t.Helper()
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected a StageError, got %v", err)
	}
	return se.Stage
}

func TestAnalyzeLocationTagsExtractionStage(t *testing.T) {
	engine := &fakeEngine{refineConf: 0.9}
	pipeline, _ := pipelineFixture(engine, &fakeExtractor{err: errors.New("unreadable video")}, nil, nil)

	_, _, _, err := pipeline.AnalyzeLocation(context.Background(), "bad.mp4", "out", 8)
	if got := stageOf(t, err); got != "frame_extraction" {
		t.Errorf("stage = %q", got)
	}
}

func TestAnalyzeLocationTagsVisionStage(t *testing.T) {
	engine := &fakeEngine{visionErr: errors.New("provider down")}
	pipeline, _ := pipelineFixture(engine, okExtractor(), nil, nil)

	_, _, _, err := pipeline.AnalyzeLocation(context.Background(), "reel.mp4", "out", 8)
	if got := stageOf(t, err); got != "vision_parallel" {
		t.Errorf("stage = %q", got)
	}
}

func TestAnalyzeLocationTagsRefinementStage(t *testing.T) {
	engine := &fakeEngine{refineErr: errors.New("normalizer down")}
	pipeline, m := pipelineFixture(engine, okExtractor(), nil, nil)

	_, _, _, err := pipeline.AnalyzeLocation(context.Background(), "reel.mp4", "out", 8)
	if got := stageOf(t, err); got != "geo_refinement" {
		t.Errorf("stage = %q", got)
	}

	// The failing stage still records its timing.
	if _, ok := m.Snapshot().Timings["geo_refinement"]; !ok {
		t.Error("geo_refinement timing missing after failure")
	}
}

func TestPlanItineraryHappyPath(t *testing.T) {
	engine := &fakeEngine{refineConf: 0.9, itinerary: "## Day 1\nColosseum first."}
	places := &fakePlaces{places: []models.Place{{Name: "Pantheon", Rating: 4.8}}}
	store := &fakeStore{}
	pipeline, m := pipelineFixture(engine, okExtractor(), places, store)

	run, got, err := pipeline.PlanItinerary(context.Background(), "reel.mp4", "out", 8, 2)
	if err != nil {
		t.Fatalf("PlanItinerary failed: %v", err)
	}
	if run.ID == "" {
		t.Error("run must get an ID")
	}
	if run.Location.City != "Rome" || run.Iterations != 1 {
		t.Errorf("unexpected run: %+v", run)
	}
	if !strings.Contains(run.Itinerary, "Day 1") {
		t.Errorf("itinerary missing: %q", run.Itinerary)
	}
	if len(got) != 1 || got[0].Name != "Pantheon" {
		t.Errorf("unexpected places: %+v", got)
	}
	if len(store.saved) != 1 {
		t.Errorf("expected 1 persisted run, got %d", len(store.saved))
	}

	snap := m.Snapshot()
	if _, ok := snap.Latencies["places_latency"]; !ok {
		t.Error("places_latency missing")
	}
	if _, ok := snap.Timings["itinerary_generation"]; !ok {
		t.Error("itinerary_generation timing missing")
	}
}

func TestPlanItineraryTagsPlacesStage(t *testing.T) {
	engine := &fakeEngine{refineConf: 0.9}
	places := &fakePlaces{err: errors.New("quota exceeded")}
	pipeline, _ := pipelineFixture(engine, okExtractor(), places, nil)

	_, _, err := pipeline.PlanItinerary(context.Background(), "reel.mp4", "out", 8, 2)
	if got := stageOf(t, err); got != "places_search" {
		t.Errorf("stage = %q", got)
	}
}

func TestPlanItineraryTagsComposerStage(t *testing.T) {
	engine := &fakeEngine{refineConf: 0.9, composeErr: errors.New("model refused")}
	pipeline, _ := pipelineFixture(engine, okExtractor(), &fakePlaces{}, nil)

	_, _, err := pipeline.PlanItinerary(context.Background(), "reel.mp4", "out", 8, 2)
	if got := stageOf(t, err); got != "itinerary_generation" {
		t.Errorf("stage = %q", got)
	}
}

// A store failure is logged, not fatal; the caller still gets the run.
func TestPlanItineraryStoreFailureIsNotFatal(t *testing.T) {
	engine := &fakeEngine{refineConf: 0.9, itinerary: "## Day 1"}
	store := &fakeStore{err: errors.New("db down")}
	pipeline, _ := pipelineFixture(engine, okExtractor(), &fakePlaces{}, store)

	run, _, err := pipeline.PlanItinerary(context.Background(), "reel.mp4", "out", 8, 2)
	if err != nil {
		t.Fatalf("store failure must not fail the run: %v", err)
	}
	if run.Location.City != "Rome" {
		t.Errorf("unexpected run: %+v", run)
	}
}

func TestPlanItinerarySkipsPlacesWhenUnconfigured(t *testing.T) {
	engine := &fakeEngine{refineConf: 0.9, itinerary: "## Day 1"}
	pipeline, _ := pipelineFixture(engine, okExtractor(), nil, nil)

	_, places, err := pipeline.PlanItinerary(context.Background(), "reel.mp4", "out", 8, 2)
	if err != nil {
		t.Fatalf("PlanItinerary failed: %v", err)
	}
	if places != nil {
		t.Errorf("expected no places without a searcher, got %+v", places)
	}
}
