package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"reelocator/internal/models"
)

const batchSize = 10

// Store persists completed analysis runs.
type Store interface {
	// SaveRun records a single completed run.
	SaveRun(ctx context.Context, run models.AnalysisRun) error

	// Flush ensures all pending runs are saved.
	Flush() error
}

// fileStore batches runs into a JSON file under the output directory. It
// is the zero-infrastructure fallback when no database is configured.
type fileStore struct {
	runs      []models.AnalysisRun
	mu        sync.Mutex
	outputDir string
}

// NewFileStore creates a JSON-file backed run store.
func NewFileStore(outputDir string) *fileStore {
	return &fileStore{
		runs:      []models.AnalysisRun{},
		outputDir: outputDir,
	}
}

// SaveRun appends a run to the batch and flushes when the batch is full.
func (s *fileStore) SaveRun(ctx context.Context, run models.AnalysisRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)

	if len(s.runs) >= batchSize {
		return s.flush()
	}
	return nil
}

// Flush writes all pending runs to disk.
func (s *fileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *fileStore) flush() error {
	if len(s.runs) == 0 {
		return nil
	}

	runsFilePath := filepath.Join(s.outputDir, "analysis_runs.json")

	var existing []models.AnalysisRun
	if data, err := os.ReadFile(runsFilePath); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to unmarshal existing runs: %w", err)
		}
	}

	all := append(existing, s.runs...)

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(runsFilePath)
	if err != nil {
		return fmt.Errorf("failed to create runs file: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(all); err != nil {
		return fmt.Errorf("failed to encode runs: %w", err)
	}

	s.runs = nil
	return nil
}
