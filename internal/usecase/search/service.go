// Package search implements ad-hoc semantic retrieval: a free-text query is
// embedded and matched against the vector index by cosine similarity.
package search

import (
	"context"
	"fmt"
	"strings"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/repository"
)

const (
	// DefaultK is the hit count when the caller does not ask for one.
	DefaultK = 10

	// MaxK matches the vector store's per-query cap.
	MaxK = 100
)

// Request is one retrieval query. K outside [1, MaxK] is clamped, zero
// selecting DefaultK. Filter narrows by kind and category; zero values
// match everything.
type Request struct {
	Query  string
	K      int
	Filter entity.SearchFilter
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Service embeds queries and runs them against the vector index.
type Service struct {
	vectors  repository.VectorRepository
	embedder Embedder
}

// NewService wires the retriever.
func NewService(vectors repository.VectorRepository, emb Embedder) *Service {
	return &Service{vectors: vectors, embedder: emb}
}

// Search returns up to K nearest records, ordered by similarity desc with
// publication time and record id as tie-breakers.
func (s *Service) Search(ctx context.Context, req Request) ([]entity.SearchHit, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, &entity.ValidationError{Field: "query", Message: "query is required"}
	}
	if req.Filter.Kind != "" && !req.Filter.Kind.IsValid() {
		return nil, &entity.ValidationError{Field: "kind", Message: "kind must be video or web"}
	}
	if req.Filter.Category != "" && !req.Filter.Category.IsValid() {
		return nil, &entity.ValidationError{Field: "category", Message: "unknown category"}
	}

	k := req.K
	if k <= 0 {
		k = DefaultK
	}
	if k > MaxK {
		k = MaxK
	}

	embeddings, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("query embedding returned %d vectors", len(embeddings))
	}

	hits, err := s.vectors.Query(ctx, repository.VectorQuery{
		Embedding: embeddings[0],
		K:         k,
		Filter:    req.Filter,
	})
	metrics.RecordVectorOp("query", err)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	return hits, nil
}
