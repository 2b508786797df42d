package audit

import (
	"context"
	"errors"
	"sync"
)

// Repository errors.
var (
	ErrRunNotFound = errors.New("run not found")
)

// Repository defines the interface for run history persistence.
type Repository interface {
	// SaveRun records a completed run.
	SaveRun(ctx context.Context, run Run) error

	// SaveEntries records the per-resource outcomes of a run.
	SaveEntries(ctx context.Context, entries []Entry) error

	// LastRun retrieves the most recent run for an application.
	LastRun(ctx context.Context, application string) (Run, error)
}

// InMemoryRepository is an in-memory implementation of Repository, used when
// no audit database is configured and in tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	runs    []Run
	entries []Entry
}

// NewInMemoryRepository creates a new in-memory run repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// SaveRun records a completed run.
func (r *InMemoryRepository) SaveRun(_ context.Context, run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = append(r.runs, run)
	return nil
}

// SaveEntries records the per-resource outcomes of a run.
func (r *InMemoryRepository) SaveEntries(_ context.Context, entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entries...)
	return nil
}

// LastRun retrieves the most recent run for an application.
func (r *InMemoryRepository) LastRun(_ context.Context, application string) (Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].Application == application {
			return r.runs[i], nil
		}
	}
	return Run{}, ErrRunNotFound
}

// Entries returns all recorded entries for a run.
func (r *InMemoryRepository) Entries(runID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, e := range r.entries {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}
