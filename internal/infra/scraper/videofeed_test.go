package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/resilience/circuitbreaker"
)

func testChannel() entity.Channel {
	return entity.Channel{Name: "example-channel", ChannelID: "UCexample1234567890abcd"}
}

func newTestVideoAdapter(feedURL string) *VideoFeedAdapter {
	client := &http.Client{Timeout: 10 * time.Second}
	breaker := circuitbreaker.New(circuitbreaker.FeedFetchConfig())
	adapter := NewVideoFeedAdapter(testChannel(), client, breaker)
	adapter.feedURL = feedURL
	return adapter
}

func videoFeedXML(entries ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:yt="http://www.youtube.com/xml/schemas/2015"
      xmlns:media="http://search.yahoo.com/mrss/">
  <title>Example Channel</title>
%s
</feed>`, strings.Join(entries, "\n"))
}

func videoEntry(videoID, title string, published time.Time, description string) string {
	return fmt.Sprintf(`  <entry>
    <id>yt:video:%[1]s</id>
    <yt:videoId>%[1]s</yt:videoId>
    <title>%[2]s</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=%[1]s"/>
    <published>%[3]s</published>
    <media:group>
      <media:title>%[2]s</media:title>
      <media:description>%[4]s</media:description>
    </media:group>
  </entry>`, videoID, title, published.Format(time.RFC3339), description)
}

func TestVideoFeedAdapter_Fetch_Success(t *testing.T) {
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	feed := videoFeedXML(
		videoEntry("vid00000001", "Older upload", now.Add(-6*time.Hour), "About the older upload."),
		videoEntry("vid00000002", "Newer upload", now.Add(-time.Hour), "About the newer upload."),
	)

	server := feedServer(t, feed)
	defer server.Close()

	adapter := newTestVideoAdapter(server.URL)

	if adapter.Name() != "example-channel" {
		t.Errorf("Name() = %q, want example-channel", adapter.Name())
	}
	if adapter.Kind() != entity.SourceKindSyndication {
		t.Errorf("Kind() = %q, want syndication", adapter.Kind())
	}

	items, err := adapter.Fetch(context.Background(), since, now)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items length = %d, want 2", len(items))
	}

	first := items[0]
	if first.Kind != entity.ArticleKindVideo || first.Video == nil {
		t.Fatalf("items[0] = %+v, want a video item", first)
	}
	if first.Video.VideoID != "vid00000002" {
		t.Errorf("VideoID = %q, want the newer upload first", first.Video.VideoID)
	}
	if first.Video.ChannelID != "UCexample1234567890abcd" {
		t.Errorf("ChannelID = %q, want catalog channel id", first.Video.ChannelID)
	}
	if first.Video.URL != "https://www.youtube.com/watch?v=vid00000002" {
		t.Errorf("URL = %q, want the watch link", first.Video.URL)
	}
	// Atomのsummaryが無いのでmedia:groupのdescriptionを使う
	if first.Video.Description != "About the newer upload." {
		t.Errorf("Description = %q, want media:group fallback", first.Video.Description)
	}
	if first.Video.Transcript != "" {
		t.Errorf("Transcript = %q, must be empty at harvest time", first.Video.Transcript)
	}
}

func TestVideoFeedAdapter_Fetch_VideoIDFromURL(t *testing.T) {
	now := time.Now().UTC()

	feed := videoFeedXML(fmt.Sprintf(`  <entry>
    <title>No extension id</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=fallback123"/>
    <published>%s</published>
  </entry>`, now.Add(-time.Hour).Format(time.RFC3339)))

	server := feedServer(t, feed)
	defer server.Close()

	adapter := newTestVideoAdapter(server.URL)

	items, err := adapter.Fetch(context.Background(), now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items length = %d, want 1", len(items))
	}
	if items[0].Video.VideoID != "fallback123" {
		t.Errorf("VideoID = %q, want id from watch URL", items[0].Video.VideoID)
	}
}

func TestVideoFeedAdapter_Fetch_SkipsEntriesWithoutID(t *testing.T) {
	now := time.Now().UTC()

	feed := videoFeedXML(
		fmt.Sprintf(`  <entry>
    <title>Unresolvable</title>
    <link rel="alternate" href="https://www.youtube.com/channel/UCexample"/>
    <published>%s</published>
  </entry>`, now.Add(-time.Hour).Format(time.RFC3339)),
		videoEntry("vid00000003", "Resolvable", now.Add(-2*time.Hour), "Fine."),
	)

	server := feedServer(t, feed)
	defer server.Close()

	adapter := newTestVideoAdapter(server.URL)

	items, err := adapter.Fetch(context.Background(), now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items length = %d, want 1 (entry without id skipped)", len(items))
	}
	if items[0].Video.VideoID != "vid00000003" {
		t.Errorf("VideoID = %q, want vid00000003", items[0].Video.VideoID)
	}
}

func TestVideoFeedAdapter_Fetch_WindowFilter(t *testing.T) {
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	feed := videoFeedXML(
		videoEntry("vid00000004", "Inside window", now.Add(-time.Hour), "Recent."),
		videoEntry("vid00000005", "Outside window", since.Add(-3*time.Hour), "Stale."),
	)

	server := feedServer(t, feed)
	defer server.Close()

	adapter := newTestVideoAdapter(server.URL)

	items, err := adapter.Fetch(context.Background(), since, now)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items length = %d, want 1", len(items))
	}
	if items[0].Video.VideoID != "vid00000004" {
		t.Errorf("VideoID = %q, want the in-window upload", items[0].Video.VideoID)
	}
}

func TestNewVideoFeedAdapter_FeedURL(t *testing.T) {
	adapter := NewVideoFeedAdapter(testChannel(), http.DefaultClient, circuitbreaker.New(circuitbreaker.FeedFetchConfig()))

	want := "https://www.youtube.com/feeds/videos.xml?channel_id=UCexample1234567890abcd"
	if adapter.feedURL != want {
		t.Errorf("feedURL = %q, want %q", adapter.feedURL, want)
	}
}
