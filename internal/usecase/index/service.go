// Package index implements the embedding stage: summaries that own no
// vector record yet are embedded and written to the vector store, with
// near-duplicates suppressed before they enter the index.
//
// The work list is "summaries without a vector record", so a run that
// crashed between the summary write and the vector write is repaired on the
// next pass without re-asking the summary model.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/repository"
)

// Embedder turns texts into vectors. Batching against the provider happens
// behind this interface.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Stats is the per-run accounting for the index stage. Duplicates counts
// summaries suppressed by the nearest-neighbor check; they are marked in the
// record store and never enter the vector index.
type Stats struct {
	Indexed    int
	Duplicates int
	Failed     int
}

// Service drives the index stage.
type Service struct {
	summaries    repository.SummaryRepository
	vectors      repository.VectorRepository
	embedder     Embedder
	dupThreshold float64
}

// NewService wires the index stage.
func NewService(summaries repository.SummaryRepository, vectors repository.VectorRepository, emb Embedder, pipeCfg *config.PipelineConfig) *Service {
	return &Service{
		summaries:    summaries,
		vectors:      vectors,
		embedder:     emb,
		dupThreshold: pipeCfg.DupThreshold,
	}
}

// Run embeds and indexes every summary that lacks a vector record. Per-item
// store failures are counted and skipped; the returned error is non-nil only
// when the candidate query or the embedding call fails, or the context ends.
func (s *Service) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	candidates, err := s.summaries.ListWithoutVector(ctx)
	if err != nil {
		return stats, fmt.Errorf("index candidate query failed: %w", err)
	}
	if len(candidates) == 0 {
		return stats, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Summary.EmbeddingText()
	}

	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return stats, fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != len(candidates) {
		return stats, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(candidates), len(embeddings))
	}

	// 挿入順で重複判定するため逐次処理。並列化すると同一ウィンドウ内の
	// 重複ペアが互いを見ずに両方インデックスされうる。
	for i, c := range candidates {
		duplicate, err := s.indexOne(ctx, c, embeddings[i])
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			stats.Failed++
			slog.WarnContext(ctx, "indexing failed",
				slog.String("record_id", c.Summary.RecordID()),
				slog.String("error", err.Error()))
			continue
		}
		if duplicate {
			stats.Duplicates++
		} else {
			stats.Indexed++
		}
	}

	slog.InfoContext(ctx, "index stage completed",
		slog.Int("indexed", stats.Indexed),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("failed", stats.Failed))

	return stats, nil
}

// indexOne checks one candidate against its nearest neighbor and either
// suppresses it as a duplicate or upserts its vector record.
func (s *Service) indexOne(ctx context.Context, c repository.SummaryWithMeta, embedding []float32) (bool, error) {
	hits, err := s.vectors.Query(ctx, repository.VectorQuery{Embedding: embedding, K: 1})
	metrics.RecordVectorOp("query", err)
	if err != nil {
		return false, fmt.Errorf("neighbor query failed: %w", err)
	}

	if len(hits) > 0 && hits[0].Similarity >= s.dupThreshold {
		neighbor := hits[0].RecordID
		if err := s.summaries.MarkDuplicate(ctx, c.Summary.ArticleKind, c.Summary.ArticleID, neighbor); err != nil {
			return false, fmt.Errorf("duplicate mark failed: %w", err)
		}
		metrics.RecordDuplicateSuppressed()
		slog.InfoContext(ctx, "near-duplicate suppressed",
			slog.String("record_id", c.Summary.RecordID()),
			slog.String("duplicate_of", neighbor),
			slog.Float64("similarity", hits[0].Similarity))
		return true, nil
	}

	rec := &entity.VectorRecord{
		RecordID:    c.Summary.RecordID(),
		Embedding:   embedding,
		ArticleKind: c.Summary.ArticleKind,
		URL:         c.Summary.URL,
		Title:       c.Summary.Title,
		Category:    c.Category,
		SourceName:  c.SourceName,
		PublishedAt: c.PublishedAt,
		CreatedAt:   time.Now(),
	}
	if err := rec.Validate(); err != nil {
		return false, fmt.Errorf("vector record invalid: %w", err)
	}

	err = s.vectors.Upsert(ctx, rec)
	metrics.RecordVectorOp("upsert", err)
	if err != nil {
		return false, fmt.Errorf("vector upsert failed: %w", err)
	}
	return false, nil
}
