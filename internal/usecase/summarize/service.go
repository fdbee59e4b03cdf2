// Package summarize implements the digest stage: each new item is turned
// into a short Japanese-or-English prose summary by the configured model
// provider and persisted. Items that already carry a summary are skipped,
// so re-running a window is cheap.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/infra/llm"
	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/repository"
	"pulse-digest/internal/utils/text"
)

// Input is one item queued for summarization. Body holds the best available
// text for the item; the constructors below pick it per kind.
type Input struct {
	Kind        entity.ArticleKind
	ID          string
	URL         string
	Title       string
	Body        string
	PublishedAt time.Time
	SourceName  string
	Category    entity.Category
}

// InputFromVideo builds an Input from a video item. The transcript is the
// preferred body; videos without one fall back to the feed description.
func InputFromVideo(v *entity.VideoItem) Input {
	body := v.Transcript
	if body == "" {
		body = v.Description
	}
	return Input{
		Kind:        entity.ArticleKindVideo,
		ID:          v.VideoID,
		URL:         v.URL,
		Title:       v.Title,
		Body:        body,
		PublishedAt: v.PublishedAt,
		SourceName:  v.ChannelID,
	}
}

// InputFromWeb builds an Input from a web item. Description and extracted
// content are concatenated; either may be empty.
func InputFromWeb(w *entity.WebItem) Input {
	body := w.Description
	if w.Content != "" {
		if body != "" {
			body += "\n\n"
		}
		body += w.Content
	}
	return Input{
		Kind:        entity.ArticleKindWeb,
		ID:          w.GUID,
		URL:         w.URL,
		Title:       w.Title,
		Body:        body,
		PublishedAt: w.PublishedAt,
		SourceName:  w.SourceName,
		Category:    w.Category,
	}
}

// RecordID returns the vector-store key of the underlying item.
func (in Input) RecordID() string {
	return string(in.Kind) + ":" + in.ID
}

// Stats is the per-run accounting for the digest stage.
type Stats struct {
	Summarized int
	Skipped    int
	Failed     int

	// FailureKinds counts failures by classification (model error kinds,
	// or "store" for persistence failures).
	FailureKinds map[string]int
}

func (s *Stats) countFailure(kind string) {
	if s.FailureKinds == nil {
		s.FailureKinds = make(map[string]int)
	}
	s.Failed++
	s.FailureKinds[kind]++
}

// Service drives the digest stage. Model calls go through the shared
// semaphore so this stage, ranking and the mail intro never exceed the
// provider budget together.
type Service struct {
	provider     llm.Provider
	summaries    repository.SummaryRepository
	sem          llm.Semaphore
	temperature  float32
	charLimit    int
	parseRetries int
}

// NewService wires the digest stage from the model and pipeline configuration.
func NewService(provider llm.Provider, summaries repository.SummaryRepository, sem llm.Semaphore, modelCfg *config.ModelConfig, pipeCfg *config.PipelineConfig) *Service {
	return &Service{
		provider:     provider,
		summaries:    summaries,
		sem:          sem,
		temperature:  modelCfg.DigestTemperature,
		charLimit:    modelCfg.SummaryInputCharLimit,
		parseRetries: pipeCfg.ParseMaxRetries,
	}
}

// Run summarizes every input that does not already have a summary. Failures
// are per-item: one broken item never stops the rest. The returned error is
// non-nil only when the context is cancelled or the existence precheck
// cannot be answered.
func (s *Service) Run(ctx context.Context, inputs []Input) (Stats, error) {
	var stats Stats
	if len(inputs) == 0 {
		return stats, nil
	}

	pending, skipped, err := s.filterExisting(ctx, inputs)
	if err != nil {
		return stats, fmt.Errorf("summary existence check failed: %w", err)
	}
	stats.Skipped = skipped
	for i := 0; i < skipped; i++ {
		metrics.RecordSummary("skipped", 0)
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex

	for _, in := range pending {
		in := in
		g.Go(func() error {
			if err := s.sem.Acquire(gctx); err != nil {
				return err
			}
			start := time.Now()
			sumErr := s.summarizeOne(gctx, in)
			s.sem.Release()
			duration := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			if sumErr != nil {
				// 文脈キャンセルだけがステージを止める
				if errors.Is(sumErr, context.Canceled) || errors.Is(sumErr, context.DeadlineExceeded) {
					return sumErr
				}
				metrics.RecordSummary("failure", duration)
				stats.countFailure(failureKind(sumErr))
				slog.WarnContext(gctx, "summarization failed",
					slog.String("record_id", in.RecordID()),
					slog.String("error", sumErr.Error()))
				return nil
			}
			metrics.RecordSummary("success", duration)
			stats.Summarized++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	slog.InfoContext(ctx, "digest stage completed",
		slog.Int("summarized", stats.Summarized),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))

	return stats, nil
}

// filterExisting drops inputs that already own a summary row. Lookup is
// batched per kind to keep it at two queries regardless of window size.
func (s *Service) filterExisting(ctx context.Context, inputs []Input) ([]Input, int, error) {
	byKind := make(map[entity.ArticleKind][]string)
	for _, in := range inputs {
		byKind[in.Kind] = append(byKind[in.Kind], in.ID)
	}

	exists := make(map[string]bool, len(inputs))
	for kind, ids := range byKind {
		found, err := s.summaries.ExistsBatch(ctx, kind, ids)
		if err != nil {
			return nil, 0, err
		}
		for id, ok := range found {
			if ok {
				exists[string(kind)+":"+id] = true
			}
		}
	}

	pending := make([]Input, 0, len(inputs))
	skipped := 0
	for _, in := range inputs {
		if exists[in.RecordID()] {
			skipped++
			continue
		}
		pending = append(pending, in)
	}
	return pending, skipped, nil
}

// digestReply is the JSON shape the model is asked to produce.
type digestReply struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// summarizeOne asks the model for a digest of one item and persists it.
// Transport-level retries live inside the provider; this loop only re-asks
// when the reply came back but could not be parsed into the digest shape.
func (s *Service) summarizeOne(ctx context.Context, in Input) error {
	req := llm.CompletionRequest{
		System:      digestSystemPrompt,
		Prompt:      buildDigestPrompt(in, s.charLimit),
		Temperature: s.temperature,
		MaxTokens:   digestMaxTokens,
	}

	var lastParseErr error
	for attempt := 0; attempt <= s.parseRetries; attempt++ {
		reply, err := s.provider.Complete(ctx, req)
		metrics.RecordModelCall(s.provider.Name(), "digest", err == nil)
		if err != nil {
			return err
		}

		parsed, err := parseDigestReply(reply)
		if err != nil {
			lastParseErr = err
			slog.DebugContext(ctx, "digest reply rejected",
				slog.String("record_id", in.RecordID()),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			continue
		}

		return s.persist(ctx, in, parsed)
	}

	return &llm.ModelError{Kind: llm.ErrKindInvalid, Err: fmt.Errorf("digest reply unusable after %d attempts: %w", s.parseRetries+1, lastParseErr)}
}

// parseDigestReply extracts and validates the digest JSON from a raw reply.
func parseDigestReply(reply string) (digestReply, error) {
	var parsed digestReply

	raw, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return parsed, err
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return parsed, fmt.Errorf("digest json malformed: %w", err)
	}
	if parsed.Title == "" {
		return parsed, errors.New("digest reply missing title")
	}
	if len([]rune(parsed.Title)) > entity.MaxSummaryTitleLength {
		return parsed, fmt.Errorf("digest title exceeds %d characters", entity.MaxSummaryTitleLength)
	}
	if parsed.Summary == "" {
		return parsed, errors.New("digest reply missing summary")
	}
	return parsed, nil
}

func (s *Service) persist(ctx context.Context, in Input, parsed digestReply) error {
	summary := &entity.Summary{
		ArticleKind: in.Kind,
		ArticleID:   in.ID,
		URL:         in.URL,
		Title:       parsed.Title,
		Summary:     parsed.Summary,
		CreatedAt:   time.Now(),
	}
	if err := summary.Validate(); err != nil {
		return fmt.Errorf("summary validation failed: %w", err)
	}
	if err := s.summaries.Create(ctx, summary); err != nil {
		return fmt.Errorf("summary store failed: %w", err)
	}
	return nil
}

// failureKind buckets an item failure for the run counters.
func failureKind(err error) string {
	var me *llm.ModelError
	if errors.As(err, &me) {
		return string(me.Kind)
	}
	return "store"
}

const digestMaxTokens = 512

const digestSystemPrompt = `You are a news digest writer. Summarize the given article or video transcript for a technical reader. Reply with a single JSON object {"title": "...", "summary": "..."} and nothing else. The title must be at most 200 characters. The summary must be 2-4 sentences covering what happened and why it matters.`

// buildDigestPrompt renders the model prompt for one item. The body is
// whitespace-normalized and truncated to the configured input budget.
func buildDigestPrompt(in Input, charLimit int) string {
	body := text.TruncateForPrompt(text.NormalizeWhitespace(in.Body), charLimit)
	if body == "" {
		// 字幕も本文も無い項目はタイトルだけで要約させる
		body = "No article body is available. Summarize from the title alone."
	}
	source := in.SourceName
	if in.Category != "" {
		source = fmt.Sprintf("%s (%s)", source, in.Category)
	}
	return fmt.Sprintf("Source: %s\nTitle: %s\nURL: %s\n\n%s", source, in.Title, in.URL, body)
}
