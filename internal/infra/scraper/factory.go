package scraper

import (
	"net/http"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/resilience/circuitbreaker"
	"pulse-digest/internal/usecase/fetch"
)

// BuildAdapters wires one adapter per catalog entry. All syndication
// adapters, video channels included, share a single feed-fetch breaker.
func BuildAdapters(catalog *config.Catalog, renderer PageRenderer, client *http.Client) []fetch.SourceAdapter {
	feedBreaker := circuitbreaker.New(circuitbreaker.FeedFetchConfig())

	adapters := make([]fetch.SourceAdapter, 0, catalog.SourceCount())
	for _, channel := range catalog.Channels {
		adapters = append(adapters, NewVideoFeedAdapter(channel, client, feedBreaker))
	}
	for _, source := range catalog.WebSources {
		if source.Kind == entity.SourceKindRendered {
			adapters = append(adapters, NewRenderedAdapter(source, renderer))
			continue
		}
		adapters = append(adapters, NewSyndicationAdapter(source, client, feedBreaker))
	}
	return adapters
}
