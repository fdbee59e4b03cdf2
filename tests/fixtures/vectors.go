package fixtures

import (
	"time"

	"pulse-digest/internal/domain/entity"
)

// DefaultTestDimension matches the default embedding width configured for the
// index (EMBEDDING_DIM).
const DefaultTestDimension = 384

// VectorRecordOption is a functional option for customizing test vector records.
type VectorRecordOption func(*entity.VectorRecord)

// NewTestVectorRecord creates a valid VectorRecord with sensible defaults.
//
// Example:
//
//	rec := NewTestVectorRecord()
//	rec := NewTestVectorRecord(WithRecordID("video:vid-001"), WithRecordEmbedding(UnitVector(384, 0)))
func NewTestVectorRecord(opts ...VectorRecordOption) *entity.VectorRecord {
	now := time.Date(2025, 7, 19, 12, 0, 0, 0, time.UTC)
	rec := &entity.VectorRecord{
		RecordID:    "web:web-001",
		Embedding:   GenerateTestVector(DefaultTestDimension, 0.1),
		ArticleKind: entity.ArticleKindWeb,
		URL:         "https://example.com/news/next-generation",
		Title:       "Next model generation announced",
		Category:    entity.CategoryOfficial,
		SourceName:  "Anthropic News",
		PublishedAt: now,
		CreatedAt:   now,
	}
	for _, opt := range opts {
		opt(rec)
	}
	return rec
}

// WithRecordID sets the record id.
func WithRecordID(id string) VectorRecordOption {
	return func(r *entity.VectorRecord) {
		r.RecordID = id
	}
}

// WithRecordEmbedding sets the embedding vector.
func WithRecordEmbedding(embedding []float32) VectorRecordOption {
	return func(r *entity.VectorRecord) {
		r.Embedding = embedding
	}
}

// WithRecordKind sets the article kind.
func WithRecordKind(kind entity.ArticleKind) VectorRecordOption {
	return func(r *entity.VectorRecord) {
		r.ArticleKind = kind
	}
}

// WithRecordCategory sets the source category.
func WithRecordCategory(c entity.Category) VectorRecordOption {
	return func(r *entity.VectorRecord) {
		r.Category = c
	}
}

// WithRecordPublishedAt sets the publication instant.
func WithRecordPublishedAt(t time.Time) VectorRecordOption {
	return func(r *entity.VectorRecord) {
		r.PublishedAt = t
	}
}

// GenerateTestVector creates a deterministic vector of the specified dimension.
// The seed value is used to generate predictable but different vectors for testing.
//
// Example:
//
//	vec := GenerateTestVector(384, 0.1) // [0.1, 0.101, 0.102, ...]
//	vec := GenerateTestVector(384, 0.5) // [0.5, 0.501, 0.502, ...]
func GenerateTestVector(dimension int, seed float32) []float32 {
	vec := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vec[i] = seed + float32(i)*0.001
	}
	return vec
}

// ZeroVector creates a vector of zeros with the specified dimension.
func ZeroVector(dimension int) []float32 {
	return make([]float32, dimension)
}

// UnitVector creates a unit vector with 1.0 at the specified index and 0.0
// elsewhere. Useful for testing specific similarity calculations.
func UnitVector(dimension int, index int) []float32 {
	vec := make([]float32, dimension)
	if index >= 0 && index < dimension {
		vec[index] = 1.0
	}
	return vec
}

// NormalizedVector creates a unit-length vector from the seed, suitable for
// cosine similarity tests.
func NormalizedVector(dimension int, seed float32) []float32 {
	vec := GenerateTestVector(dimension, seed)

	var magnitude float32
	for _, v := range vec {
		magnitude += v * v
	}
	magnitude = float32(sqrt64(float64(magnitude)))

	if magnitude > 0 {
		for i := range vec {
			vec[i] /= magnitude
		}
	}
	return vec
}

// sqrt64 computes the square root of a float64 with Newton-Raphson iteration
// to avoid importing math.
func sqrt64(x float64) float64 {
	if x <= 0 {
		return 0
	}
	z := x / 2
	for i := 0; i < 10; i++ {
		z = z - (z*z-x)/(2*z)
	}
	return z
}

// SimilarVector creates a vector directionally similar to the base vector.
// retentionRatio 1.0 reproduces the base vector; lower values perturb it
// further. The result does NOT guarantee a specific cosine similarity value.
func SimilarVector(base []float32, retentionRatio float32) []float32 {
	dimension := len(base)
	result := make([]float32, dimension)

	perturbation := 1.0 - retentionRatio
	for i := 0; i < dimension; i++ {
		noise := perturbation * float32(i%10) * 0.01
		result[i] = base[i]*retentionRatio + noise
	}
	return result
}
