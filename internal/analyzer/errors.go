package analyzer

import "errors"

// ErrNoCandidates is returned by Aggregate when the result set is empty.
var ErrNoCandidates = errors.New("no candidates to aggregate")

// StageError tags a pipeline failure with the stage it came from. The
// orchestrator never retries; it wraps whatever a stage returned so the
// caller can report which stage broke instead of crashing the process.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
