// Package rank implements the scoring stage: every non-duplicate summary in
// the window is scored by the model against the reader profile, with
// nearest neighbors from the vector index supplied as historical context.
package rank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/infra/llm"
	"pulse-digest/internal/observability/metrics"
	"pulse-digest/internal/repository"
	"pulse-digest/internal/usecase/search"
)

// neutralScore is assigned when the model reply stays malformed after the
// single re-ask.
const neutralScore = 5.0

// rankParseRetries is fixed: one re-ask, then the item degrades.
const rankParseRetries = 1

// Retriever finds indexed neighbors for a candidate.
type Retriever interface {
	Search(ctx context.Context, req search.Request) ([]entity.SearchHit, error)
}

// Result is the outcome of one ranking pass. Items is the ordered top-N.
// Dropped counts candidates lost to retrieval failures; Degraded counts
// items that carry the neutral score.
type Result struct {
	Items    []entity.RankedItem
	Scored   int
	Degraded int
	Dropped  int
}

// Service drives the rank stage.
type Service struct {
	summaries   repository.SummaryRepository
	retriever   Retriever
	provider    llm.Provider
	profile     *entity.Profile
	sem         llm.Semaphore
	temperature float32
	contextK    int
}

// NewService wires the rank stage.
func NewService(summaries repository.SummaryRepository, retriever Retriever, provider llm.Provider, profile *entity.Profile, sem llm.Semaphore, modelCfg *config.ModelConfig, pipeCfg *config.PipelineConfig) *Service {
	return &Service{
		summaries:   summaries,
		retriever:   retriever,
		provider:    provider,
		profile:     profile,
		sem:         sem,
		temperature: modelCfg.RankTemperature,
		contextK:    pipeCfg.RankContextK,
	}
}

// Run scores the window [from, to] and returns the ordered top-N. Scoring is
// deterministic in its ordering: score desc, published_at desc, record id
// asc. The error is non-nil when the window query fails, the context ends,
// or every retrieval failed on a non-empty window.
func (s *Service) Run(ctx context.Context, from, to time.Time, topN int) (Result, error) {
	var result Result

	metas, err := s.summaries.ListWindow(ctx, from, to)
	if err != nil {
		return result, fmt.Errorf("rank window query failed: %w", err)
	}

	candidates := make([]repository.SummaryWithMeta, 0, len(metas))
	for _, m := range metas {
		if m.Summary.IsDuplicate() {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	items := make([]entity.RankedItem, 0, len(candidates))

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			if err := s.sem.Acquire(gctx); err != nil {
				return err
			}
			item, err := s.scoreOne(gctx, c)
			s.sem.Release()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				// 近傍が引けない候補は落とす。モデル側の失敗は scoreOne 内で
				// 中立スコアに落ちているのでここには来ない
				result.Dropped++
				slog.WarnContext(gctx, "candidate dropped from ranking",
					slog.String("record_id", c.Summary.RecordID()),
					slog.String("error", err.Error()))
				return nil
			}
			if item.Degraded {
				result.Degraded++
			}
			items = append(items, item)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	if result.Dropped == len(candidates) {
		return result, fmt.Errorf("ranking retriever unavailable: all %d retrievals failed", result.Dropped)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if !items[i].PublishedAt.Equal(items[j].PublishedAt) {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		}
		return items[i].Summary.RecordID() < items[j].Summary.RecordID()
	})

	result.Scored = len(items)
	if topN < 0 {
		topN = 0
	}
	if len(items) > topN {
		items = items[:topN]
	}
	result.Items = items

	slog.InfoContext(ctx, "rank stage completed",
		slog.Int("candidates", len(candidates)),
		slog.Int("ranked", len(result.Items)),
		slog.Int("degraded", result.Degraded),
		slog.Int("dropped", result.Dropped))

	return result, nil
}

// scoreOne retrieves neighbors for one candidate and asks the model for a
// score. A malformed reply is re-asked once; after that the item keeps the
// neutral score and is marked degraded. Model transport failures degrade
// the same way: losing one score is not worth losing the digest.
func (s *Service) scoreOne(ctx context.Context, c repository.SummaryWithMeta) (entity.RankedItem, error) {
	item := entity.RankedItem{
		Summary:     *c.Summary,
		PublishedAt: c.PublishedAt,
		SourceName:  c.SourceName,
	}

	neighbors, err := s.retrieveNeighbors(ctx, c)
	if err != nil {
		return item, err
	}

	req := llm.CompletionRequest{
		System:      rankSystemPrompt,
		Prompt:      buildRankPrompt(s.profile, c, neighbors),
		Temperature: s.temperature,
		MaxTokens:   rankMaxTokens,
	}

	for attempt := 0; attempt <= rankParseRetries; attempt++ {
		reply, err := s.provider.Complete(ctx, req)
		metrics.RecordModelCall(s.provider.Name(), "rank", err == nil)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return item, err
			}
			break
		}

		parsed, err := parseRankReply(reply)
		if err != nil {
			slog.DebugContext(ctx, "rank reply rejected",
				slog.String("record_id", c.Summary.RecordID()),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			continue
		}

		item.Score = *parsed.Score
		item.SubScores = parsed.SubScores
		item.Reasoning = parsed.Reasoning
		return item, nil
	}

	item.Score = neutralScore
	item.Degraded = true
	metrics.RecordRankDegraded()
	return item, nil
}

// retrieveNeighbors queries the index with the candidate's own text and
// strips the candidate from its result.
func (s *Service) retrieveNeighbors(ctx context.Context, c repository.SummaryWithMeta) ([]entity.SearchHit, error) {
	if s.contextK <= 0 {
		return nil, nil
	}

	hits, err := s.retriever.Search(ctx, search.Request{
		Query: c.Summary.EmbeddingText(),
		K:     s.contextK + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("neighbor retrieval failed: %w", err)
	}

	self := c.Summary.RecordID()
	neighbors := make([]entity.SearchHit, 0, s.contextK)
	for _, h := range hits {
		if h.RecordID == self {
			continue
		}
		neighbors = append(neighbors, h)
		if len(neighbors) == s.contextK {
			break
		}
	}
	return neighbors, nil
}

// rankReply is the JSON shape the model is asked to produce. Score is a
// pointer so a reply that omits it is rejected rather than read as zero.
type rankReply struct {
	Score     *float64         `json:"score"`
	SubScores entity.SubScores `json:"sub_scores"`
	Reasoning string           `json:"reasoning"`
}

func parseRankReply(reply string) (rankReply, error) {
	var parsed rankReply

	raw, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return parsed, err
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return parsed, fmt.Errorf("rank json malformed: %w", err)
	}
	if parsed.Score == nil {
		return parsed, errors.New("rank reply missing score")
	}
	if *parsed.Score < 0 || *parsed.Score > 10 {
		return parsed, fmt.Errorf("rank score %v out of range", *parsed.Score)
	}
	return parsed, nil
}

const rankMaxTokens = 512

const rankSystemPrompt = `You score news items for one specific reader. Score how much this reader should care about the candidate item, using the historical context to judge novelty. Reply with a single JSON object {"score": <float 0-10>, "sub_scores": {"relevance": <0-10>, "depth": <0-10>, "novelty": <0-10>, "alignment": <0-10>, "actionability": <0-10>}, "reasoning": "<one or two sentences>"} and nothing else.`

// buildRankPrompt renders the scoring request: reader profile, candidate,
// then retrieved neighbors as historical context.
func buildRankPrompt(profile *entity.Profile, c repository.SummaryWithMeta, neighbors []entity.SearchHit) string {
	var b strings.Builder

	b.WriteString("Reader profile:\n")
	fmt.Fprintf(&b, "Name: %s\n", profile.Name)
	if profile.Background != "" {
		fmt.Fprintf(&b, "Background: %s\n", profile.Background)
	}
	if len(profile.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(profile.Interests, ", "))
	}
	fmt.Fprintf(&b, "Expertise: %s\n", profile.ExpertiseLevel)
	if len(profile.Avoidances) > 0 {
		fmt.Fprintf(&b, "Avoid: %s\n", strings.Join(profile.Avoidances, ", "))
	}

	b.WriteString("\nCandidate:\n")
	fmt.Fprintf(&b, "Title: %s\n", c.Summary.Title)
	fmt.Fprintf(&b, "Source: %s\n", c.SourceName)
	if c.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", c.Category)
	}
	fmt.Fprintf(&b, "Published: %s\n", c.PublishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Summary: %s\n", c.Summary.Summary)

	b.WriteString("\nHistorical context (similar items already indexed):\n")
	if len(neighbors) == 0 {
		b.WriteString("none\n")
	}
	for i, n := range neighbors {
		fmt.Fprintf(&b, "%d. [similarity %.2f] %s (%s)\n", i+1, n.Similarity, n.Title, n.SourceName)
		if n.Summary != "" {
			fmt.Fprintf(&b, "   %s\n", n.Summary)
		}
	}

	return b.String()
}
