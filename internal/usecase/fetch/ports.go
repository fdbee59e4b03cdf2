// Package fetch coordinates the harvest stage: it runs every configured
// source adapter under a shared concurrency budget, retries transient
// failures, and collects the surviving items for the record store. A single
// failing source never aborts the stage.
package fetch

import (
	"context"
	"time"

	"pulse-digest/internal/domain/entity"
)

// SourceAdapter harvests one catalog entry. Implementations live in
// internal/infra/scraper.
type SourceAdapter interface {
	// Name identifies the adapter in logs, metrics and failure accounting.
	// Names are unique across the catalog.
	Name() string

	// Kind reports the adapter family (syndication or rendered).
	Kind() entity.SourceKind

	// Fetch returns items published in (since, now], newest first. Entries
	// outside the window are dropped with a small clock-skew tolerance.
	// An empty result is success; failures are *SourceError.
	Fetch(ctx context.Context, since, now time.Time) ([]entity.FeedItem, error)
}

// Enricher is the optional capability of video adapters to fetch a
// transcript for one video. Consulted in the Process stage only; a missing
// transcript is not an error.
type Enricher interface {
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}

// TaggedItem pairs a harvested item with the adapter that produced it.
type TaggedItem struct {
	AdapterName string
	Item        entity.FeedItem
}
