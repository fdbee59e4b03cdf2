// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as VideoItem, WebItem, Summary and
// RunRecord, along with their validation rules and domain-specific errors.
package entity

import "time"

// ArticleKind distinguishes the two item families the pipeline handles.
type ArticleKind string

const (
	ArticleKindVideo ArticleKind = "video"
	ArticleKindWeb   ArticleKind = "web"
)

// IsValid reports whether the kind is one of the known article kinds.
func (k ArticleKind) IsValid() bool {
	return k == ArticleKindVideo || k == ArticleKindWeb
}

// Category classifies web sources. Video items carry no category.
type Category string

const (
	CategoryOfficial Category = "official"
	CategoryResearch Category = "research"
	CategoryNews     Category = "news"
	CategorySafety   Category = "safety"
)

// IsValid reports whether the category is one of the configured buckets.
func (c Category) IsValid() bool {
	switch c {
	case CategoryOfficial, CategoryResearch, CategoryNews, CategorySafety:
		return true
	}
	return false
}

// VideoItem represents one published video harvested from a channel feed.
// The transcript is fetched lazily in the Process stage and, once present,
// is never overwritten.
type VideoItem struct {
	VideoID     string
	ChannelID   string
	Title       string
	URL         string
	Description string
	Transcript  string
	PublishedAt time.Time
	CreatedAt   time.Time
}

// RecordID returns the vector-store key for this item.
func (v *VideoItem) RecordID() string {
	return string(ArticleKindVideo) + ":" + v.VideoID
}

// WebItem represents one published article harvested from a web source.
// GUID is the feed-supplied id, or a hash of the canonical URL when the
// feed omits ids.
type WebItem struct {
	GUID        string
	SourceName  string
	Title       string
	URL         string
	Description string
	Content     string
	Category    Category
	PublishedAt time.Time
	CreatedAt   time.Time
}

// RecordID returns the vector-store key for this item.
func (w *WebItem) RecordID() string {
	return string(ArticleKindWeb) + ":" + w.GUID
}

// FeedItem is the normalized adapter output: exactly one of Video or Web is set.
type FeedItem struct {
	Kind  ArticleKind
	Video *VideoItem
	Web   *WebItem
}

// NewVideoFeedItem wraps a VideoItem as a FeedItem.
func NewVideoFeedItem(v *VideoItem) FeedItem {
	return FeedItem{Kind: ArticleKindVideo, Video: v}
}

// NewWebFeedItem wraps a WebItem as a FeedItem.
func NewWebFeedItem(w *WebItem) FeedItem {
	return FeedItem{Kind: ArticleKindWeb, Web: w}
}

// Key returns the natural key of the wrapped item (video_id or guid).
func (f FeedItem) Key() string {
	switch f.Kind {
	case ArticleKindVideo:
		if f.Video != nil {
			return f.Video.VideoID
		}
	case ArticleKindWeb:
		if f.Web != nil {
			return f.Web.GUID
		}
	}
	return ""
}

// RecordID returns the vector-store key of the wrapped item.
func (f FeedItem) RecordID() string {
	return string(f.Kind) + ":" + f.Key()
}

// Title returns the wrapped item's title.
func (f FeedItem) Title() string {
	switch f.Kind {
	case ArticleKindVideo:
		if f.Video != nil {
			return f.Video.Title
		}
	case ArticleKindWeb:
		if f.Web != nil {
			return f.Web.Title
		}
	}
	return ""
}

// URL returns the wrapped item's link.
func (f FeedItem) URL() string {
	switch f.Kind {
	case ArticleKindVideo:
		if f.Video != nil {
			return f.Video.URL
		}
	case ArticleKindWeb:
		if f.Web != nil {
			return f.Web.URL
		}
	}
	return ""
}

// PublishedAt returns the wrapped item's publication instant.
func (f FeedItem) PublishedAt() time.Time {
	switch f.Kind {
	case ArticleKindVideo:
		if f.Video != nil {
			return f.Video.PublishedAt
		}
	case ArticleKindWeb:
		if f.Web != nil {
			return f.Web.PublishedAt
		}
	}
	return time.Time{}
}

// SourceName returns the channel id for videos and the source name for web items.
func (f FeedItem) SourceName() string {
	switch f.Kind {
	case ArticleKindVideo:
		if f.Video != nil {
			return f.Video.ChannelID
		}
	case ArticleKindWeb:
		if f.Web != nil {
			return f.Web.SourceName
		}
	}
	return ""
}

// Validate checks that the feed item is well formed: a valid kind, the
// matching payload present, and a non-empty natural key.
func (f FeedItem) Validate() error {
	if !f.Kind.IsValid() {
		return &ValidationError{Field: "kind", Message: "kind must be video or web"}
	}
	if f.Kind == ArticleKindVideo && f.Video == nil {
		return &ValidationError{Field: "video", Message: "video payload is required"}
	}
	if f.Kind == ArticleKindWeb && f.Web == nil {
		return &ValidationError{Field: "web", Message: "web payload is required"}
	}
	if f.Key() == "" {
		return &ValidationError{Field: "key", Message: "natural key is required"}
	}
	if f.Kind == ArticleKindWeb && !f.Web.Category.IsValid() {
		return &ValidationError{Field: "category", Message: "category must be official, research, news or safety"}
	}
	return nil
}
