package fixtures

import (
	"time"

	"pulse-digest/internal/domain/entity"
)

// VideoItemOption is a functional option for customizing test video items.
type VideoItemOption func(*entity.VideoItem)

// NewTestVideoItem creates a valid VideoItem with sensible defaults.
// Use functional options to customize the item for specific test cases.
//
// Example:
//
//	item := NewTestVideoItem()
//	item := NewTestVideoItem(WithVideoID("abc123"), WithTranscript("..."))
func NewTestVideoItem(opts ...VideoItemOption) *entity.VideoItem {
	now := time.Date(2025, 7, 19, 12, 0, 0, 0, time.UTC)
	v := &entity.VideoItem{
		VideoID:     "vid-001",
		ChannelID:   "UC-ai-explained",
		Title:       "Frontier model capabilities, explained",
		URL:         "https://www.youtube.com/watch?v=vid-001",
		Description: "A walkthrough of the latest release.",
		Transcript:  "",
		PublishedAt: now,
		CreatedAt:   now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// WithVideoID sets the video id.
func WithVideoID(id string) VideoItemOption {
	return func(v *entity.VideoItem) {
		v.VideoID = id
		v.URL = "https://www.youtube.com/watch?v=" + id
	}
}

// WithChannelID sets the channel id.
func WithChannelID(id string) VideoItemOption {
	return func(v *entity.VideoItem) {
		v.ChannelID = id
	}
}

// WithTranscript sets the transcript text.
func WithTranscript(transcript string) VideoItemOption {
	return func(v *entity.VideoItem) {
		v.Transcript = transcript
	}
}

// WithVideoPublishedAt sets the publication instant.
func WithVideoPublishedAt(t time.Time) VideoItemOption {
	return func(v *entity.VideoItem) {
		v.PublishedAt = t
	}
}

// WebItemOption is a functional option for customizing test web items.
type WebItemOption func(*entity.WebItem)

// NewTestWebItem creates a valid WebItem with sensible defaults.
func NewTestWebItem(opts ...WebItemOption) *entity.WebItem {
	now := time.Date(2025, 7, 19, 12, 0, 0, 0, time.UTC)
	w := &entity.WebItem{
		GUID:        "web-001",
		SourceName:  "Anthropic News",
		Title:       "Introducing the next model generation",
		URL:         "https://example.com/news/next-generation",
		Description: "Release announcement.",
		Content:     "Today we are announcing a new model generation with stronger reasoning.",
		Category:    entity.CategoryOfficial,
		PublishedAt: now,
		CreatedAt:   now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WithGUID sets the item guid.
func WithGUID(guid string) WebItemOption {
	return func(w *entity.WebItem) {
		w.GUID = guid
	}
}

// WithSourceName sets the source name.
func WithSourceName(name string) WebItemOption {
	return func(w *entity.WebItem) {
		w.SourceName = name
	}
}

// WithCategory sets the source category.
func WithCategory(c entity.Category) WebItemOption {
	return func(w *entity.WebItem) {
		w.Category = c
	}
}

// WithContent sets the extracted body text.
func WithContent(content string) WebItemOption {
	return func(w *entity.WebItem) {
		w.Content = content
	}
}

// WithWebPublishedAt sets the publication instant.
func WithWebPublishedAt(t time.Time) WebItemOption {
	return func(w *entity.WebItem) {
		w.PublishedAt = t
	}
}

// NewTestVideoFeedItem wraps a test video item as the adapter output type.
func NewTestVideoFeedItem(opts ...VideoItemOption) entity.FeedItem {
	return entity.NewVideoFeedItem(NewTestVideoItem(opts...))
}

// NewTestWebFeedItem wraps a test web item as the adapter output type.
func NewTestWebFeedItem(opts ...WebItemOption) entity.FeedItem {
	return entity.NewWebFeedItem(NewTestWebItem(opts...))
}
