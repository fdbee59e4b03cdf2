package repository

import (
	"context"

	"pulse-digest/internal/domain/entity"
)

// RunRepository persists pipeline run records. Every state transition is
// written through Update, so a crashed run is observable as whatever stage
// it last reached.
type RunRepository interface {
	// Create inserts a new run record and fills in its generated ID.
	Create(ctx context.Context, run *entity.RunRecord) error

	// Update rewrites the mutable fields of an existing run: stage, state,
	// counters, finished_at and error.
	Update(ctx context.Context, run *entity.RunRecord) error

	// Get returns the run with the given id, or entity.ErrNotFound.
	Get(ctx context.Context, runID int64) (*entity.RunRecord, error)

	// Latest returns the most recently started run, or nil when no run has
	// ever been recorded.
	Latest(ctx context.Context) (*entity.RunRecord, error)

	// List returns up to limit runs, most recently started first.
	List(ctx context.Context, limit int) ([]*entity.RunRecord, error)
}
