// Package pipeline implements the digest run orchestrator: a linear state
// machine Scrape → Process → Digest → Index → Rank → Email whose transitions
// are persisted to the run record. Stage failures inside a stage are
// advisory and land in the run counters; only a stage-level error finishes
// the run as failed, and cancellation finishes it as cancelled at the next
// stage boundary.
//
// The request plane reuses prefixes of the same machine: scrape-only runs
// the first two stages, send-now the last two.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/observability/tracing"
	"pulse-digest/internal/repository"
	"pulse-digest/internal/usecase/fetch"
	"pulse-digest/internal/usecase/index"
	"pulse-digest/internal/usecase/mail"
	"pulse-digest/internal/usecase/rank"
	"pulse-digest/internal/usecase/summarize"
)

// Options are the per-run parameters. TopN zero falls back to the configured
// default; WindowHours is taken literally, so zero means an empty window and
// with it an empty ranking. Callers that want the configured window pass it
// explicitly.
type Options struct {
	WindowHours int
	TopN        int
	SkipEmail   bool
	Recipient   string
	Subject     string
}

// Service drives pipeline runs. One Service instance serves the worker and
// the request plane concurrently; each run carries its own state.
type Service struct {
	fetcher  *fetch.Service
	enricher fetch.Enricher
	digester *summarize.Service
	indexer  *index.Service
	ranker   *rank.Service
	mailer   *mail.Service

	videos    repository.VideoRepository
	webs      repository.WebRepository
	runs      repository.RunRepository
	summaries repository.SummaryRepository

	cfg    *config.PipelineConfig
	active *registry
}

// NewService wires the orchestrator. enricher may be nil when no video
// channels are configured; the Process stage then has nothing to do.
func NewService(
	fetcher *fetch.Service,
	enricher fetch.Enricher,
	digester *summarize.Service,
	indexer *index.Service,
	ranker *rank.Service,
	mailer *mail.Service,
	videos repository.VideoRepository,
	webs repository.WebRepository,
	summaries repository.SummaryRepository,
	runs repository.RunRepository,
	cfg *config.PipelineConfig,
) *Service {
	return &Service{
		fetcher:   fetcher,
		enricher:  enricher,
		digester:  digester,
		indexer:   indexer,
		ranker:    ranker,
		mailer:    mailer,
		videos:    videos,
		webs:      webs,
		summaries: summaries,
		runs:      runs,
		cfg:       cfg,
		active:    newRegistry(),
	}
}

// stageDef is one state of the machine: a name and the function that moves
// the run through it. Representing stages as data keeps the Scrape/Process
// prefix and the Rank/Email suffix composable without duplicated control
// flow.
type stageDef struct {
	name entity.Stage
	run  func(ctx context.Context, st *runState) error
}

// runState is the mutable context of one run threaded through its stages.
type runState struct {
	run      *entity.RunRecord
	opts     Options
	from, to time.Time
	ranked   []entity.RankedItem
	delivery mail.Delivery
}

func (s *Service) fullStages() []stageDef {
	return []stageDef{
		{entity.StageScrape, s.stageScrape},
		{entity.StageProcess, s.stageProcess},
		{entity.StageDigest, s.stageDigest},
		{entity.StageIndex, s.stageIndex},
		{entity.StageRank, s.stageRank},
		{entity.StageEmail, s.stageEmail},
	}
}

func (s *Service) scrapeStages() []stageDef {
	return []stageDef{
		{entity.StageScrape, s.stageScrape},
		{entity.StageProcess, s.stageProcess},
	}
}

// Run executes the full six-stage pipeline and returns the terminal run
// record. The returned error is non-nil only when the run could not even be
// recorded; every other failure is reflected in the record's state.
func (s *Service) Run(ctx context.Context, opts Options) (*entity.RunRecord, error) {
	return s.execute(ctx, opts, s.fullStages())
}

// Scrape executes the harvest prefix only: Scrape and Process.
func (s *Service) Scrape(ctx context.Context, windowHours int) (*entity.RunRecord, error) {
	return s.execute(ctx, Options{WindowHours: windowHours, SkipEmail: true}, s.scrapeStages())
}

// StartRun launches a full pipeline run in the background and returns its
// handle immediately. The run outlives the caller's request: only its values
// are carried over, not its cancellation.
func (s *Service) StartRun(ctx context.Context, opts Options) (*entity.RunRecord, error) {
	return s.start(ctx, opts, s.fullStages())
}

// StartScrape launches a harvest-only run in the background.
func (s *Service) StartScrape(ctx context.Context, windowHours int) (*entity.RunRecord, error) {
	return s.start(ctx, Options{WindowHours: windowHours, SkipEmail: true}, s.scrapeStages())
}

func (s *Service) start(ctx context.Context, opts Options, stages []stageDef) (*entity.RunRecord, error) {
	run, st, err := s.begin(ctx, &opts, stages[0].name)
	if err != nil {
		return nil, err
	}
	handle := *run
	go func() {
		_, _ = s.runStages(context.WithoutCancel(ctx), run, st, stages, nil)
	}()
	return &handle, nil
}

// SendDigest executes the delivery suffix only: Rank and Email over the
// already-harvested window, ignoring the skip_email toggle.
func (s *Service) SendDigest(ctx context.Context, opts Options) (*entity.RunRecord, mail.Delivery, error) {
	var delivery mail.Delivery
	run, err := s.executeCapture(ctx, opts, []stageDef{
		{entity.StageRank, s.stageRank},
		{entity.StageEmail, s.stageSendNow},
	}, &delivery)
	return run, delivery, err
}

// Cancel requests cancellation of a running pipeline. It reports whether a
// run with that id was active; the run itself finishes as cancelled at its
// next stage boundary, or earlier when a stage observes the context.
func (s *Service) Cancel(runID int64) bool {
	return s.active.cancel(runID)
}

// ActiveRuns returns the number of runs currently in flight.
func (s *Service) ActiveRuns() int {
	return s.active.size()
}

func (s *Service) execute(ctx context.Context, opts Options, stages []stageDef) (*entity.RunRecord, error) {
	return s.executeCapture(ctx, opts, stages, nil)
}

// executeCapture runs the stage list. When deliveryOut is non-nil the email
// stage's delivery is copied out for callers that return the rendered HTML.
func (s *Service) executeCapture(ctx context.Context, opts Options, stages []stageDef, deliveryOut *mail.Delivery) (*entity.RunRecord, error) {
	run, st, err := s.begin(ctx, &opts, stages[0].name)
	if err != nil {
		return nil, err
	}
	return s.runStages(ctx, run, st, stages, deliveryOut)
}

// begin normalizes the options and persists the initial run record.
func (s *Service) begin(ctx context.Context, opts *Options, first entity.Stage) (*entity.RunRecord, *runState, error) {
	if opts.WindowHours < 0 {
		opts.WindowHours = 0
	}
	if opts.TopN <= 0 {
		opts.TopN = s.cfg.TopN
	}

	now := time.Now().UTC()
	run := &entity.RunRecord{
		StartedAt:   now,
		WindowHours: opts.WindowHours,
		TopN:        opts.TopN,
		Stage:       first,
		State:       entity.RunStateRunning,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("run record create failed: %w", err)
	}

	st := &runState{
		run:  run,
		opts: *opts,
		from: now.Add(-time.Duration(opts.WindowHours) * time.Hour),
		to:   now,
	}
	return run, st, nil
}

func (s *Service) runStages(ctx context.Context, run *entity.RunRecord, st *runState, stages []stageDef, deliveryOut *mail.Delivery) (*entity.RunRecord, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.active.add(run.ID, cancel)
	defer s.active.remove(run.ID)
	defer cancel()

	logger := slog.Default().With(slog.Int64("run_id", run.ID))
	start := time.Now()

	for _, stage := range stages {
		// ステージ境界でのみキャンセルを状態遷移に反映する
		if err := ctx.Err(); err != nil {
			return s.finish(run, entity.RunStateCancelled, "cancelled before "+string(stage.name), logger, start)
		}

		run.Stage = stage.name
		if err := s.runs.Update(ctx, run); err != nil {
			return s.finish(run, entity.RunStateFailed, fmt.Sprintf("run record update failed at %s: %v", stage.name, err), logger, start)
		}

		stageCtx, span := tracing.StartStageSpan(ctx, run.ID, string(stage.name))
		stageStart := time.Now()
		err := stage.run(stageCtx, st)
		metrics.RecordStageDuration(string(stage.name), time.Since(stageStart))
		span.End()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return s.finish(run, entity.RunStateCancelled, "cancelled during "+string(stage.name), logger, start)
			}
			return s.finish(run, entity.RunStateFailed, fmt.Sprintf("%s stage failed: %v", stage.name, err), logger, start)
		}

		logger.Info("stage completed", slog.String("stage", string(stage.name)))
	}

	if deliveryOut != nil {
		*deliveryOut = st.delivery
	}

	run.Stage = entity.StageDone
	return s.finish(run, entity.RunStateCompleted, "", logger, start)
}

// finish writes the terminal state. The update deliberately uses a fresh
// context: a cancelled run must still be able to record that it was
// cancelled.
func (s *Service) finish(run *entity.RunRecord, state entity.RunState, errMsg string, logger *slog.Logger, start time.Time) (*entity.RunRecord, error) {
	now := time.Now().UTC()
	run.State = state
	run.FinishedAt = &now
	run.Error = errMsg

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.runs.Update(ctx, run); err != nil {
		logger.Error("terminal run record update failed",
			slog.String("state", string(state)),
			slog.Any("error", err))
		return run, fmt.Errorf("run record finalize failed: %w", err)
	}

	duration := time.Since(start)
	metrics.RecordRunFinished(string(state), duration)
	logger.Info("run finished",
		slog.String("state", string(state)),
		slog.String("stage", string(run.Stage)),
		slog.Duration("duration", duration),
		slog.Int("scraped", run.Counters.Scraped),
		slog.Int("new", run.Counters.NewItems),
		slog.Int("summarized", run.Counters.Summarized),
		slog.Int("indexed", run.Counters.Indexed),
		slog.Int("ranked", run.Counters.Ranked),
		slog.Int("emailed", run.Counters.Emailed))
	if errMsg != "" {
		logger.Warn("run error", slog.String("error", errMsg))
	}
	return run, nil
}
