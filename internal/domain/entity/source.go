package entity

// SourceKind selects the adapter family used to harvest a web source.
type SourceKind string

const (
	// SourceKindSyndication parses a well-formed RSS/Atom document.
	SourceKindSyndication SourceKind = "syndication"
	// SourceKindRendered fetches a page and extracts readable text from it.
	SourceKindRendered SourceKind = "rendered"
)

// IsValid reports whether the kind names a known adapter family.
func (k SourceKind) IsValid() bool {
	return k == SourceKindSyndication || k == SourceKindRendered
}

// Source is one web publication in the catalog. Adding a syndication source
// is a data change: the catalog file alone drives adapter construction.
type Source struct {
	Name     string     `yaml:"name"`
	Kind     SourceKind `yaml:"kind"`
	Category Category   `yaml:"category"`
	Endpoint string     `yaml:"endpoint"`
	FeedURL  string     `yaml:"feed_url,omitempty"`

	// ListingSelector is a CSS selector for article links on the endpoint
	// page. Only meaningful for rendered sources: when set, each linked page
	// becomes its own item instead of one snapshot of the endpoint.
	ListingSelector string `yaml:"listing_selector,omitempty"`
}

// Validate checks catalog invariants for a web source entry.
func (s *Source) Validate() error {
	if s.Name == "" {
		return &ValidationError{Field: "name", Message: "source name is required"}
	}
	if !s.Kind.IsValid() {
		return &ValidationError{Field: "kind", Message: "kind must be syndication or rendered"}
	}
	if !s.Category.IsValid() {
		return &ValidationError{Field: "category", Message: "category must be official, research, news or safety"}
	}
	if s.Kind == SourceKindSyndication && s.FeedURL == "" {
		return &ValidationError{Field: "feed_url", Message: "feed_url is required for syndication sources"}
	}
	if s.Kind == SourceKindRendered && s.Endpoint == "" {
		return &ValidationError{Field: "endpoint", Message: "endpoint is required for rendered sources"}
	}
	return nil
}

// Channel is one video channel in the catalog; harvested via its public
// syndication feed, transcripts fetched separately in the Process stage.
type Channel struct {
	Name      string `yaml:"name"`
	ChannelID string `yaml:"channel_id"`
}

// Validate checks catalog invariants for a channel entry.
func (c *Channel) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "channel name is required"}
	}
	if c.ChannelID == "" {
		return &ValidationError{Field: "channel_id", Message: "channel_id is required"}
	}
	return nil
}
