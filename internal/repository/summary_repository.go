package repository

import (
	"context"
	"time"

	"pulse-digest/internal/domain/entity"
)

// SummaryWithMeta pairs a summary with the publication metadata of its
// source item. The summaries table stores no published_at of its own, so
// window queries join against the item tables. Category is empty for video
// items, which carry none.
type SummaryWithMeta struct {
	Summary     *entity.Summary
	PublishedAt time.Time
	SourceName  string
	Category    entity.Category
}

// SummaryRepository manages model-produced summaries keyed by
// (article_kind, article_id).
type SummaryRepository interface {
	// Create persists a summary. Creation is idempotent on the natural key:
	// re-creating an existing summary is a no-op, never an overwrite, so a
	// summary is not re-derived once stored.
	Create(ctx context.Context, s *entity.Summary) error

	// Get returns the summary for (kind, id), or nil when absent.
	Get(ctx context.Context, kind entity.ArticleKind, articleID string) (*entity.Summary, error)

	// ExistsBatch reports which of the given article ids of one kind already
	// have a summary. Used to avoid N+1 lookups in the Digest stage.
	ExistsBatch(ctx context.Context, kind entity.ArticleKind, articleIDs []string) (map[string]bool, error)

	// ListWindow returns summaries whose source item was published within
	// [from, to], newest first, with the item's publication metadata.
	ListWindow(ctx context.Context, from, to time.Time) ([]SummaryWithMeta, error)

	// ListWindowPaginated is ListWindow with LIMIT/OFFSET plus a total count
	// for pagination metadata.
	ListWindowPaginated(ctx context.Context, from, to time.Time, offset, limit int) ([]SummaryWithMeta, int64, error)

	// ListWithoutVector returns non-duplicate summaries that have no
	// matching vector record, with item metadata, oldest first. This feeds
	// the Index stage: freshly digested summaries and dual-write leftovers
	// from a crashed run both show up here.
	ListWithoutVector(ctx context.Context) ([]SummaryWithMeta, error)

	// MarkDuplicate records that the summary for (kind, id) duplicates an
	// earlier record; such summaries own no vector record and are excluded
	// from ranking and retrieval.
	MarkDuplicate(ctx context.Context, kind entity.ArticleKind, articleID, duplicateOf string) error

	// Delete removes the summary for (kind, id). The paired vector record
	// is removed by the caller; the record store never reaches into the
	// vector store.
	Delete(ctx context.Context, kind entity.ArticleKind, articleID string) error

	// Count returns total summaries and how many are duplicate-suppressed.
	Count(ctx context.Context) (total int64, duplicates int64, err error)
}
