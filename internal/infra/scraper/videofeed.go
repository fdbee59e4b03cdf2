package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/resilience/circuitbreaker"
)

// videoFeedBase is the public per-channel syndication endpoint.
const videoFeedBase = "https://www.youtube.com/feeds/videos.xml?channel_id="

// VideoFeedAdapter harvests one video channel through its Atom feed.
// Transcripts are not fetched here; the processing stage enriches them.
type VideoFeedAdapter struct {
	channel entity.Channel
	feedURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewVideoFeedAdapter creates an adapter for a channel catalog entry.
func NewVideoFeedAdapter(channel entity.Channel, client *http.Client, breaker *circuitbreaker.CircuitBreaker) *VideoFeedAdapter {
	return &VideoFeedAdapter{
		channel: channel,
		feedURL: videoFeedBase + url.QueryEscape(channel.ChannelID),
		client:  client,
		breaker: breaker,
	}
}

// Name returns the catalog channel name.
func (a *VideoFeedAdapter) Name() string { return a.channel.Name }

// Kind returns the adapter family. Video feeds are plain Atom documents.
func (a *VideoFeedAdapter) Kind() entity.SourceKind { return entity.SourceKindSyndication }

// Fetch parses the channel feed once and maps entries inside the window.
func (a *VideoFeedAdapter) Fetch(ctx context.Context, since, now time.Time) ([]entity.FeedItem, error) {
	feed, err := fetchFeed(ctx, a.channel.Name, a.feedURL, a.client, a.breaker)
	if err != nil {
		return nil, err
	}
	return a.mapItems(ctx, feed, since, now), nil
}

// mapItems converts feed entries to VideoItems. Entries without a resolvable
// video id are logged and skipped rather than failing the channel.
func (a *VideoFeedAdapter) mapItems(ctx context.Context, feed *gofeed.Feed, since, now time.Time) []entity.FeedItem {
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

		videoID := videoIDFromItem(it)
		if videoID == "" {
			slog.WarnContext(ctx, "feed entry has no video id, skipping",
				slog.String("channel", a.channel.Name),
				slog.String("title", it.Title),
				slog.String("link", it.Link))
			continue
		}
		if _, dup := seen[videoID]; dup {
			continue
		}
		seen[videoID] = struct{}{}

		items = append(items, entity.NewVideoFeedItem(&entity.VideoItem{
			VideoID:     videoID,
			ChannelID:   a.channel.ChannelID,
			Title:       it.Title,
			URL:         it.Link,
			Description: videoDescription(it),
			PublishedAt: pubAt,
		}))
	}

	sortNewestFirst(items)
	return items
}

// videoIDFromItem reads the yt:videoId entry extension, falling back to the
// watch URL's v parameter.
func videoIDFromItem(it *gofeed.Item) string {
	if exts, ok := it.Extensions["yt"]; ok {
		if ids, ok := exts["videoId"]; ok && len(ids) > 0 && ids[0].Value != "" {
			return ids[0].Value
		}
	}
	if u, err := url.Parse(it.Link); err == nil {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
	}
	return ""
}

// videoDescription prefers the entry summary and falls back to the
// media:group description, which is where channel feeds put it.
func videoDescription(it *gofeed.Item) string {
	if it.Description != "" {
		return it.Description
	}
	if exts, ok := it.Extensions["media"]; ok {
		if groups, ok := exts["group"]; ok && len(groups) > 0 {
			if descs, ok := groups[0].Children["description"]; ok && len(descs) > 0 {
				return descs[0].Value
			}
		}
	}
	return ""
}
