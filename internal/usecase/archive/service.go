package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pulse-digest/internal/common/pagination"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/repository"
	"pulse-digest/internal/resilience/circuitbreaker"
)

// Item listing limits. Listing endpoints clamp rather than reject.
const (
	defaultItemLimit = 50
	maxItemLimit     = 200
)

// ActiveCounter reports how many pipeline runs are currently in flight.
type ActiveCounter interface {
	ActiveRuns() int
}

// Service provides the read side of the archive: summary listings, item
// listings, run history and corpus statistics. Maintenance operations run
// over the breaker-wrapped connection, never the repositories.
type Service struct {
	videos    repository.VideoRepository
	webs      repository.WebRepository
	summaries repository.SummaryRepository
	vectors   repository.VectorRepository
	runs      repository.RunRepository
	active    ActiveCounter
	maint     *circuitbreaker.DBCircuitBreaker
}

// NewService wires the archive read side. active may be nil for binaries that
// run no pipeline; ActiveRuns then reads as zero. maint may be nil, which
// disables Prune.
func NewService(
	videos repository.VideoRepository,
	webs repository.WebRepository,
	summaries repository.SummaryRepository,
	vectors repository.VectorRepository,
	runs repository.RunRepository,
	active ActiveCounter,
	maint *circuitbreaker.DBCircuitBreaker,
) *Service {
	return &Service{
		videos:    videos,
		webs:      webs,
		summaries: summaries,
		vectors:   vectors,
		runs:      runs,
		active:    active,
		maint:     maint,
	}
}

// SummariesPage is one page of the summary archive.
type SummariesPage struct {
	Data       []repository.SummaryWithMeta
	Pagination pagination.Metadata
}

// ListSummaries returns the summaries published in [from, to], newest first,
// paginated. Duplicates stay listed so the archive remains auditable.
func (s *Service) ListSummaries(ctx context.Context, from, to time.Time, params pagination.Params) (*SummariesPage, error) {
	data, total, err := s.summaries.ListWindowPaginated(ctx, from, to, params.Offset(), params.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return &SummariesPage{
		Data:       data,
		Pagination: pagination.NewMetadata(params, total),
	}, nil
}

// Items is a recent-items listing, split by kind.
type Items struct {
	Videos []*entity.VideoItem
	Webs   []*entity.WebItem
}

// Items returns the most recently published items. kind narrows the listing
// to one item family; empty means both. limit is clamped to [1, 200] with a
// default of 50.
func (s *Service) Items(ctx context.Context, kind entity.ArticleKind, limit int) (*Items, error) {
	if kind != "" && !kind.IsValid() {
		return nil, ErrInvalidKind
	}
	if limit <= 0 {
		limit = defaultItemLimit
	}
	if limit > maxItemLimit {
		limit = maxItemLimit
	}

	var out Items
	if kind == "" || kind == entity.ArticleKindVideo {
		videos, err := s.videos.ListRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("list recent videos: %w", err)
		}
		out.Videos = videos
	}
	if kind == "" || kind == entity.ArticleKindWeb {
		webs, err := s.webs.ListRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("list recent webs: %w", err)
		}
		out.Webs = webs
	}
	return &out, nil
}

// Run returns one run record by ID.
// Returns ErrInvalidRunID for non-positive IDs and ErrRunNotFound when no
// such run exists.
func (s *Service) Run(ctx context.Context, runID int64) (*entity.RunRecord, error) {
	if runID <= 0 {
		return nil, ErrInvalidRunID
	}
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Runs returns the most recent run records, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]*entity.RunRecord, error) {
	if limit <= 0 {
		limit = defaultItemLimit
	}
	if limit > maxItemLimit {
		limit = maxItemLimit
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

const pruneRunQuery = `DELETE FROM runs WHERE run_id = $1`

// A vector whose summary is gone can only mislead retrieval; sweeping here
// keeps the index consistent without a separate maintenance job.
const sweepOrphanVectorsQuery = `
DELETE FROM vector_records vr
WHERE NOT EXISTS (
        SELECT 1 FROM summaries s
        WHERE s.article_kind || ':' || s.article_id = vr.record_id)`

// Prune deletes a finished run record and sweeps vector records whose
// summary has been removed. Maintenance statements go through the database
// circuit breaker so a struggling database sheds this work before the hot
// pipeline path is affected.
func (s *Service) Prune(ctx context.Context, runID int64) error {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return err
	}
	if !run.State.IsTerminal() {
		return ErrRunActive
	}
	if s.maint == nil {
		return ErrMaintenanceDisabled
	}

	if _, err := s.maint.ExecContext(ctx, pruneRunQuery, runID); err != nil {
		return fmt.Errorf("prune run: %w", err)
	}
	if _, err := s.maint.ExecContext(ctx, sweepOrphanVectorsQuery); err != nil {
		return fmt.Errorf("sweep orphan vectors: %w", err)
	}
	return nil
}

// Stats is a point-in-time snapshot of the corpus and the engine.
type Stats struct {
	Videos     int64
	Webs       int64
	Summaries  int64
	Duplicates int64
	Vectors    int64
	LastRun    *entity.RunRecord
	ActiveRuns int
}

// Stats gathers corpus counts, the latest run and the in-flight run count.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	var err error

	if st.Videos, err = s.videos.Count(ctx); err != nil {
		return nil, fmt.Errorf("count videos: %w", err)
	}
	if st.Webs, err = s.webs.Count(ctx); err != nil {
		return nil, fmt.Errorf("count webs: %w", err)
	}
	if st.Summaries, st.Duplicates, err = s.summaries.Count(ctx); err != nil {
		return nil, fmt.Errorf("count summaries: %w", err)
	}
	if st.Vectors, err = s.vectors.Count(ctx, entity.SearchFilter{}); err != nil {
		return nil, fmt.Errorf("count vectors: %w", err)
	}

	last, err := s.runs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	st.LastRun = last

	if s.active != nil {
		st.ActiveRuns = s.active.ActiveRuns()
	}
	return &st, nil
}
