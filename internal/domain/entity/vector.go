package entity

import "time"

// VectorRecord is an embedding plus the metadata needed to present a search
// hit without a relational join. It is keyed one-to-one with a Summary via
// RecordID ("<kind>:<id>"). The record store remains the source of truth;
// vector records are a rebuildable index.
type VectorRecord struct {
	RecordID    string
	Embedding   []float32
	ArticleKind ArticleKind
	URL         string
	Title       string
	Category    Category
	SourceName  string
	PublishedAt time.Time
	CreatedAt   time.Time
}

// Validate checks structural constraints before an index write.
func (v *VectorRecord) Validate() error {
	if v.RecordID == "" {
		return &ValidationError{Field: "record_id", Message: "record id is required"}
	}
	if len(v.Embedding) == 0 {
		return &ValidationError{Field: "embedding", Message: "embedding cannot be empty"}
	}
	if !v.ArticleKind.IsValid() {
		return &ValidationError{Field: "article_kind", Message: "kind must be video or web"}
	}
	return nil
}

// SearchHit is one nearest-neighbor result: the summary prose joined in from
// the record store, the vector metadata, and the cosine similarity to the
// query in [0, 1].
type SearchHit struct {
	RecordID    string
	ArticleKind ArticleKind
	URL         string
	Title       string
	Summary     string
	Category    Category
	SourceName  string
	PublishedAt time.Time
	Similarity  float64
}

// SearchFilter narrows a neighbor query by metadata. Zero values match all.
type SearchFilter struct {
	Kind     ArticleKind
	Category Category
}
