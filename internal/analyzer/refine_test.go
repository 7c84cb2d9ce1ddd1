package analyzer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"reelocator/internal/models"
)

// scriptedNormalizer yields one scripted confidence per call. Each refined
// candidate carries its iteration number in Region so tests can tell which
// iteration's candidate came back.
type scriptedNormalizer struct {
	confidences []float64
	calls       int
	errAt       int // 1-based call that fails; 0 for never
}

func (n *scriptedNormalizer) Name() string { return "scripted" }

func (n *scriptedNormalizer) RefineLocation(ctx context.Context, c models.LocationCandidate) (models.LocationCandidate, error) {
	n.calls++
	if n.errAt > 0 && n.calls == n.errAt {
		return models.LocationCandidate{}, errors.New("normalizer unavailable")
	}

	refined := c
	refined.Confidence = n.confidences[n.calls-1]
	refined.Region = fmt.Sprintf("iteration-%d", n.calls)
	return refined, nil
}

func refineFixture() models.LocationCandidate {
	return models.LocationCandidate{City: "Kyoto", Country: "Japan"}
}

func TestRefineStopsWhenThresholdMet(t *testing.T) {
	norm := &scriptedNormalizer{confidences: []float64{0.5, 0.8}}
	loop := NewRefinementLoop(testLogger())

	final, iters, err := loop.Refine(context.Background(), refineFixture(), norm)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if iters != 2 {
		t.Errorf("expected 2 iterations, got %d", iters)
	}
	if final.Region != "iteration-2" {
		t.Errorf("expected the iteration-2 candidate, got %s", final.Region)
	}
	if final.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", final.Confidence)
	}
}

// A non-improving confidence stops the loop and returns the just-computed,
// rejected-for-improvement candidate.
func TestRefineStopsWhenConfidenceDrops(t *testing.T) {
	norm := &scriptedNormalizer{confidences: []float64{0.5, 0.4}}
	loop := NewRefinementLoop(testLogger())

	final, iters, err := loop.Refine(context.Background(), refineFixture(), norm)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if iters != 2 {
		t.Errorf("expected 2 iterations, got %d", iters)
	}
	if final.Region != "iteration-2" {
		t.Errorf("expected the rejected iteration-2 candidate, got %s", final.Region)
	}
	if final.Confidence != 0.4 {
		t.Errorf("expected the rejected confidence 0.4, got %v", final.Confidence)
	}
}

func TestRefineEqualConfidenceCountsAsNoImprovement(t *testing.T) {
	initial := refineFixture()
	initial.Confidence = 0.5

	norm := &scriptedNormalizer{confidences: []float64{0.5}}
	loop := NewRefinementLoop(testLogger())

	final, iters, err := loop.Refine(context.Background(), initial, norm)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if iters != 1 {
		t.Errorf("expected 1 iteration, got %d", iters)
	}
	if final.Region != "iteration-1" {
		t.Errorf("expected the iteration-1 candidate, got %s", final.Region)
	}
}

// Always improving but never reaching the threshold exhausts the bound.
// Exhaustion means every iteration was accepted, so the returned candidate
// is the one from the final iteration.
func TestRefineExhaustsMaxIterations(t *testing.T) {
	norm := &scriptedNormalizer{confidences: []float64{0.3, 0.5, 0.6}}
	loop := NewRefinementLoop(testLogger())

	final, iters, err := loop.Refine(context.Background(), refineFixture(), norm)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if iters != DefaultMaxIters {
		t.Errorf("expected %d iterations, got %d", DefaultMaxIters, iters)
	}
	if final.Region != "iteration-3" {
		t.Errorf("expected the last accepted candidate (iteration-3), got %s", final.Region)
	}
	if final.Confidence != 0.6 {
		t.Errorf("expected confidence 0.6, got %v", final.Confidence)
	}
}

func TestRefineThresholdMetOnFirstIteration(t *testing.T) {
	norm := &scriptedNormalizer{confidences: []float64{0.95}}
	loop := NewRefinementLoop(testLogger())

	final, iters, err := loop.Refine(context.Background(), refineFixture(), norm)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if iters != 1 {
		t.Errorf("expected 1 iteration, got %d", iters)
	}
	if final.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", final.Confidence)
	}
}

func TestRefineNormalizerErrorPropagates(t *testing.T) {
	norm := &scriptedNormalizer{confidences: []float64{0.5, 0}, errAt: 2}
	loop := NewRefinementLoop(testLogger())

	_, iters, err := loop.Refine(context.Background(), refineFixture(), norm)
	if err == nil {
		t.Fatal("expected the normalizer error to propagate")
	}
	if iters != 2 {
		t.Errorf("expected failure on iteration 2, got %d", iters)
	}
	if norm.calls != 2 {
		t.Errorf("no retry allowed, got %d calls", norm.calls)
	}
}
