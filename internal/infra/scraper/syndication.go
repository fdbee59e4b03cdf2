package scraper

import (
	"context"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/resilience/circuitbreaker"
)

// SyndicationAdapter harvests one web publication through its RSS/Atom feed.
// The breaker is shared with the other syndication adapters.
type SyndicationAdapter struct {
	source  entity.Source
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewSyndicationAdapter creates an adapter for a syndication catalog entry.
func NewSyndicationAdapter(source entity.Source, client *http.Client, breaker *circuitbreaker.CircuitBreaker) *SyndicationAdapter {
	return &SyndicationAdapter{source: source, client: client, breaker: breaker}
}

// Name returns the catalog source name.
func (a *SyndicationAdapter) Name() string { return a.source.Name }

// Kind returns the adapter family.
func (a *SyndicationAdapter) Kind() entity.SourceKind { return entity.SourceKindSyndication }

// Fetch parses the feed once and maps entries inside the window to items.
func (a *SyndicationAdapter) Fetch(ctx context.Context, since, now time.Time) ([]entity.FeedItem, error) {
	feed, err := fetchFeed(ctx, a.source.Name, a.source.FeedURL, a.client, a.breaker)
	if err != nil {
		return nil, err
	}
	return a.mapItems(feed, since, now), nil
}

// mapItems converts feed entries to WebItems, dropping entries outside the
// window and duplicate ids within the same document.
func (a *SyndicationAdapter) mapItems(feed *gofeed.Feed, since, now time.Time) []entity.FeedItem {
	items := make([]entity.FeedItem, 0, len(feed.Items))
	seen := make(map[string]struct{}, len(feed.Items))

	for _, it := range feed.Items {
		pubAt := now
		if it.PublishedParsed != nil {
			pubAt = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			pubAt = *it.UpdatedParsed
		}
		if !withinWindow(pubAt, since, now) {
			continue
		}

		guid := it.GUID
		if guid == "" {
			guid = guidFromURL(it.Link)
		}
		if _, dup := seen[guid]; dup {
			continue
		}
		seen[guid] = struct{}{}

		// Content優先、なければDescriptionを使用
		content := it.Content
		if content == "" {
			content = it.Description
		}

		items = append(items, entity.NewWebFeedItem(&entity.WebItem{
			GUID:        guid,
			SourceName:  a.source.Name,
			Title:       it.Title,
			URL:         it.Link,
			Description: it.Description,
			Content:     content,
			Category:    a.source.Category,
			PublishedAt: pubAt,
		}))
	}

	sortNewestFirst(items)
	return items
}
