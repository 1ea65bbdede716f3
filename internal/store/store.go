package store

import "context"

// Store defines the interface for run persistence operations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun stores a finished run, overwriting any run with the same ID.
	SaveRun(ctx context.Context, run *Run) error

	// LoadRun retrieves a run by ID.
	// Returns ErrNotFound if no run exists for this ID.
	LoadRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns metadata for every stored run, newest first.
	ListRuns(ctx context.Context) ([]RunInfo, error)

	// DeleteRun removes a run and its artifacts.
	// Returns ErrNotFound if no run exists for this ID.
	DeleteRun(ctx context.Context, id string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
