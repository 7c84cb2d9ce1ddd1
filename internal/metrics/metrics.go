// Package metrics is the pipeline's shared observability store. A single
// Store instance is constructed at process start and passed by reference
// into every stage; all access is serialized through one mutex.
package metrics

import (
	"sync"
	"time"
)

// Store holds counters, latencies and timings for one process. The coarse
// single-lock granularity is deliberate: a handful of stages write per
// pipeline run, so contention is negligible and a consistent snapshot
// across all three groups comes for free.
type Store struct {
	mu        sync.Mutex
	counters  map[string]int64
	latencies map[string]float64
	timings   map[string]float64
}

// Snapshot is an independent point-in-time copy of a Store. It never
// aliases the live maps and is safe to read without locking.
type Snapshot struct {
	Counters  map[string]int64   `json:"counters"`
	Latencies map[string]float64 `json:"latencies"`
	Timings   map[string]float64 `json:"timings"`
}

// NewStore returns an empty metrics store.
func NewStore() *Store {
	return &Store{
		counters:  make(map[string]int64),
		latencies: make(map[string]float64),
		timings:   make(map[string]float64),
	}
}

// Add increments the named counter by n, creating it at zero if absent.
func (s *Store) Add(name string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += n
}

// Inc increments the named counter by one.
func (s *Store) Inc(name string) { s.Add(name, 1) }

// RecordLatency stores a latency value in seconds, overwriting any
// previous value for the same name.
func (s *Store) RecordLatency(name string, seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[name] = seconds
}

// Timing returns the recorded timing for name in seconds, or zero.
func (s *Store) Timing(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timings[name]
}

// Timer starts a scoped wall-clock measurement. The returned stop func
// records the elapsed seconds into timings[name]; callers defer it so the
// timing is recorded whether the wrapped operation succeeds or fails, and
// errors raised inside the scope still reach the caller untouched.
//
//	defer store.Timer("frame_extraction")()
func (s *Store) Timer(name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start).Seconds()
		s.mu.Lock()
		s.timings[name] = elapsed
		s.mu.Unlock()
	}
}

// Snapshot returns a deep copy of all three maps, taken under the lock so
// the view is consistent across counters, latencies and timings.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Counters:  make(map[string]int64, len(s.counters)),
		Latencies: make(map[string]float64, len(s.latencies)),
		Timings:   make(map[string]float64, len(s.timings)),
	}
	for k, v := range s.counters {
		snap.Counters[k] = v
	}
	for k, v := range s.latencies {
		snap.Latencies[k] = v
	}
	for k, v := range s.timings {
		snap.Timings[k] = v
	}
	return snap
}
