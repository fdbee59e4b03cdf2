package repository

import (
	"context"
	"time"

	"pulse-digest/internal/domain/entity"
)

// WebRepository manages harvested web items keyed by guid.
type WebRepository interface {
	// UpsertBatch inserts or updates items by natural key inside a single
	// transaction and returns the number of newly inserted rows. Upsert
	// semantics match VideoRepository.UpsertBatch: created_at is preserved,
	// mutable fields (title, description, content) update only when the
	// incoming value is non-empty and differs.
	UpsertBatch(ctx context.Context, items []*entity.WebItem) (int, error)

	// Get returns the item with the given guid, or nil when absent.
	Get(ctx context.Context, guid string) (*entity.WebItem, error)

	// ListWindow returns items with published_at in [from, to], newest first.
	ListWindow(ctx context.Context, from, to time.Time) ([]*entity.WebItem, error)

	// ListRecent returns the newest items up to limit.
	ListRecent(ctx context.Context, limit int) ([]*entity.WebItem, error)

	// Count returns the total number of stored web items.
	Count(ctx context.Context) (int64, error)
}
