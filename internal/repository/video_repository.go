// Package repository defines the persistence ports of the digest engine.
// The record store (video items, web items, summaries, runs) is the source
// of truth; the vector store is a derived, rebuildable index.
package repository

import (
	"context"
	"time"

	"pulse-digest/internal/domain/entity"
)

// VideoRepository manages harvested video items keyed by video_id.
type VideoRepository interface {
	// UpsertBatch inserts or updates items by natural key inside a single
	// transaction and returns the number of newly inserted rows. On key
	// collision created_at is preserved and mutable fields (title,
	// description) update only when the incoming value is non-empty and
	// differs; a transcript, once present, is never overwritten.
	UpsertBatch(ctx context.Context, items []*entity.VideoItem) (int, error)

	// Get returns the item with the given video_id, or nil when absent.
	Get(ctx context.Context, videoID string) (*entity.VideoItem, error)

	// ListWindow returns items with published_at in [from, to], newest first.
	ListWindow(ctx context.Context, from, to time.Time) ([]*entity.VideoItem, error)

	// ListMissingTranscript returns window items whose transcript is empty,
	// oldest first, so enrichment fills the backlog in publication order.
	ListMissingTranscript(ctx context.Context, from, to time.Time) ([]*entity.VideoItem, error)

	// SetTranscript stores a transcript for an item that has none yet.
	// A non-empty existing transcript is left untouched.
	SetTranscript(ctx context.Context, videoID, transcript string) error

	// ListRecent returns the newest items up to limit.
	ListRecent(ctx context.Context, limit int) ([]*entity.VideoItem, error)

	// Count returns the total number of stored video items.
	Count(ctx context.Context) (int64, error)
}
