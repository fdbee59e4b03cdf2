package fixtures

import (
	"time"

	"pulse-digest/internal/domain/entity"
)

// SummaryOption is a functional option for customizing test summaries.
type SummaryOption func(*entity.Summary)

// NewTestSummary creates a valid Summary with sensible defaults.
func NewTestSummary(opts ...SummaryOption) *entity.Summary {
	s := &entity.Summary{
		ArticleKind: entity.ArticleKindWeb,
		ArticleID:   "web-001",
		URL:         "https://example.com/news/next-generation",
		Title:       "Next model generation announced",
		Summary:     "The lab announced a new model generation with stronger reasoning, longer context, and lower latency. Early benchmarks show gains on coding tasks.",
		DuplicateOf: "",
		CreatedAt:   time.Date(2025, 7, 19, 12, 30, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithSummaryKey sets the natural key (kind, id).
func WithSummaryKey(kind entity.ArticleKind, id string) SummaryOption {
	return func(s *entity.Summary) {
		s.ArticleKind = kind
		s.ArticleID = id
	}
}

// WithSummaryTitle sets the digest title.
func WithSummaryTitle(title string) SummaryOption {
	return func(s *entity.Summary) {
		s.Title = title
	}
}

// WithSummaryText sets the summary prose.
func WithSummaryText(text string) SummaryOption {
	return func(s *entity.Summary) {
		s.Summary = text
	}
}

// WithDuplicateOf marks the summary as suppressed in favor of recordID.
func WithDuplicateOf(recordID string) SummaryOption {
	return func(s *entity.Summary) {
		s.DuplicateOf = recordID
	}
}

// NewTestRankedItem creates a scored candidate as the Rank stage would emit.
func NewTestRankedItem(score float64, opts ...SummaryOption) entity.RankedItem {
	s := NewTestSummary(opts...)
	return entity.RankedItem{
		Summary: *s,
		Score:   score,
		SubScores: entity.SubScores{
			Relevance:     score,
			Depth:         score - 0.5,
			Novelty:       score - 1.0,
			Alignment:     score,
			Actionability: score - 1.5,
		},
		Reasoning:   "Directly relevant to the reader's stated interests.",
		Degraded:    false,
		PublishedAt: time.Date(2025, 7, 19, 12, 0, 0, 0, time.UTC),
		SourceName:  "Anthropic News",
	}
}

// NewTestProfile returns a reader profile usable across ranking and mail tests.
func NewTestProfile() *entity.Profile {
	return &entity.Profile{
		Name:       "Dana",
		Background: "Backend engineer building LLM-powered tooling.",
		Interests: []string{
			"model releases",
			"agentic coding tools",
			"retrieval and embeddings",
		},
		ExpertiseLevel: entity.ExpertiseAdvanced,
		Avoidances: []string{
			"crypto",
			"celebrity drama",
		},
	}
}
