package scraper

import (
	"net/http"
	"testing"
	"time"

	"pulse-digest/internal/config"
	"pulse-digest/internal/domain/entity"
)

func TestBuildAdapters_DefaultCatalog(t *testing.T) {
	catalog := config.DefaultCatalog()
	client := &http.Client{Timeout: 10 * time.Second}
	renderer := &fakeRenderer{}

	adapters := BuildAdapters(catalog, renderer, client)

	if len(adapters) != catalog.SourceCount() {
		t.Fatalf("adapters = %d, want one per catalog entry (%d)", len(adapters), catalog.SourceCount())
	}

	names := make(map[string]bool, len(adapters))
	var rendered, syndicated int
	for _, adapter := range adapters {
		if names[adapter.Name()] {
			t.Errorf("duplicate adapter name %q", adapter.Name())
		}
		names[adapter.Name()] = true

		switch adapter.Kind() {
		case entity.SourceKindRendered:
			rendered++
			if _, ok := adapter.(*RenderedAdapter); !ok {
				t.Errorf("adapter %q has rendered kind but type %T", adapter.Name(), adapter)
			}
		case entity.SourceKindSyndication:
			syndicated++
		default:
			t.Errorf("adapter %q reports unknown kind %q", adapter.Name(), adapter.Kind())
		}
	}

	if rendered == 0 {
		t.Error("default catalog should wire at least one rendered adapter")
	}
	if syndicated == 0 {
		t.Error("default catalog should wire syndication adapters")
	}
}

func TestBuildAdapters_SharedFeedBreaker(t *testing.T) {
	catalog := &config.Catalog{
		Channels: []entity.Channel{
			{Name: "channel-a", ChannelID: "UCaaaa"},
			{Name: "channel-b", ChannelID: "UCbbbb"},
		},
		WebSources: []entity.Source{
			{Name: "blog-a", Kind: entity.SourceKindSyndication, Category: entity.CategoryNews, FeedURL: "https://a.example.com/feed"},
		},
	}

	adapters := BuildAdapters(catalog, &fakeRenderer{}, http.DefaultClient)
	if len(adapters) != 3 {
		t.Fatalf("adapters = %d, want 3", len(adapters))
	}

	videoA, ok := adapters[0].(*VideoFeedAdapter)
	if !ok {
		t.Fatalf("adapters[0] = %T, want VideoFeedAdapter", adapters[0])
	}
	videoB := adapters[1].(*VideoFeedAdapter)
	blog := adapters[2].(*SyndicationAdapter)

	if videoA.breaker != videoB.breaker || videoA.breaker != blog.breaker {
		t.Error("all syndication adapters must share one feed breaker")
	}
}
