package entity

import "time"

// MaxSummaryTitleLength is the upper bound for model-produced digest titles.
const MaxSummaryTitleLength = 200

// Summary is the model-produced prose description of one item. At most one
// summary exists per (ArticleKind, ArticleID). DuplicateOf carries the record
// id of an earlier near-identical summary; such rows own no vector record.
type Summary struct {
	ArticleKind ArticleKind
	ArticleID   string
	URL         string
	Title       string
	Summary     string
	DuplicateOf string
	CreatedAt   time.Time
}

// RecordID returns the vector-store key paired with this summary.
func (s *Summary) RecordID() string {
	return string(s.ArticleKind) + ":" + s.ArticleID
}

// EmbeddingText returns the canonical text the indexer embeds.
func (s *Summary) EmbeddingText() string {
	return s.Title + "\n" + s.Summary
}

// IsDuplicate reports whether the summary was suppressed as a near-duplicate.
func (s *Summary) IsDuplicate() bool {
	return s.DuplicateOf != ""
}

// Validate checks structural constraints on a summary before persistence.
func (s *Summary) Validate() error {
	if !s.ArticleKind.IsValid() {
		return &ValidationError{Field: "article_kind", Message: "kind must be video or web"}
	}
	if s.ArticleID == "" {
		return &ValidationError{Field: "article_id", Message: "article id is required"}
	}
	if s.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if len([]rune(s.Title)) > MaxSummaryTitleLength {
		return &ValidationError{Field: "title", Message: "title must not exceed 200 characters"}
	}
	if s.Summary == "" {
		return &ValidationError{Field: "summary", Message: "summary is required"}
	}
	return nil
}
