package repository

import (
	"context"

	"pulse-digest/internal/domain/entity"
)

// VectorQuery describes a nearest-neighbour search against the vector store.
type VectorQuery struct {
	Embedding []float32
	K         int
	Filter    entity.SearchFilter
}

// VectorRepository manages the derived embedding index. Records are keyed by
// record_id ("kind:id") and can always be rebuilt from the summaries table.
type VectorRepository interface {
	// Upsert inserts or replaces the vector record. Replacing is total: a
	// re-embedded record carries the new embedding and metadata.
	Upsert(ctx context.Context, rec *entity.VectorRecord) error

	// Delete removes the record, reporting whether it existed.
	Delete(ctx context.Context, recordID string) (bool, error)

	// Exists reports whether a vector record is present for record_id.
	Exists(ctx context.Context, recordID string) (bool, error)

	// Query returns up to K hits by cosine similarity, ordered by
	// similarity DESC, published_at DESC, record_id ASC. An empty store
	// yields an empty slice, not an error.
	Query(ctx context.Context, q VectorQuery) ([]entity.SearchHit, error)

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, filter entity.SearchFilter) (int64, error)
}
