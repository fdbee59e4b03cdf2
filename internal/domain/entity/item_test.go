package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArticleKind_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		kind     ArticleKind
		expected bool
	}{
		{"video is valid", ArticleKindVideo, true},
		{"web is valid", ArticleKindWeb, true},
		{"empty is invalid", ArticleKind(""), false},
		{"unknown is invalid", ArticleKind("podcast"), false},
		{"uppercase is invalid", ArticleKind("VIDEO"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.IsValid())
		})
	}
}

func TestCategory_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		expected bool
	}{
		{"official is valid", CategoryOfficial, true},
		{"research is valid", CategoryResearch, true},
		{"news is valid", CategoryNews, true},
		{"safety is valid", CategorySafety, true},
		{"empty is invalid", Category(""), false},
		{"unknown is invalid", Category("sports"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.category.IsValid())
		})
	}
}

func TestRecordID_Formats(t *testing.T) {
	video := &VideoItem{VideoID: "abc123"}
	assert.Equal(t, "video:abc123", video.RecordID())

	web := &WebItem{GUID: "example.com/post-1"}
	assert.Equal(t, "web:example.com/post-1", web.RecordID())
}

func TestFeedItem_Accessors(t *testing.T) {
	published := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	video := NewVideoFeedItem(&VideoItem{
		VideoID:     "v1",
		ChannelID:   "chan-a",
		Title:       "Release recap",
		URL:         "https://example.com/watch?v=v1",
		PublishedAt: published,
	})
	assert.Equal(t, "v1", video.Key())
	assert.Equal(t, "video:v1", video.RecordID())
	assert.Equal(t, "Release recap", video.Title())
	assert.Equal(t, "chan-a", video.SourceName())
	assert.Equal(t, published, video.PublishedAt())

	web := NewWebFeedItem(&WebItem{
		GUID:        "g1",
		SourceName:  "Example Blog",
		Title:       "Model update",
		URL:         "https://example.com/post",
		Category:    CategoryNews,
		PublishedAt: published,
	})
	assert.Equal(t, "g1", web.Key())
	assert.Equal(t, "web:g1", web.RecordID())
	assert.Equal(t, "Example Blog", web.SourceName())
}

func TestFeedItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    FeedItem
		wantErr bool
	}{
		{
			name: "valid video item",
			item: NewVideoFeedItem(&VideoItem{VideoID: "v1", Title: "t"}),
		},
		{
			name: "valid web item",
			item: NewWebFeedItem(&WebItem{GUID: "g1", Title: "t", Category: CategoryResearch}),
		},
		{
			name:    "unknown kind",
			item:    FeedItem{Kind: ArticleKind("audio")},
			wantErr: true,
		},
		{
			name:    "video kind without payload",
			item:    FeedItem{Kind: ArticleKindVideo},
			wantErr: true,
		},
		{
			name:    "web kind without payload",
			item:    FeedItem{Kind: ArticleKindWeb},
			wantErr: true,
		},
		{
			name:    "missing natural key",
			item:    NewVideoFeedItem(&VideoItem{Title: "t"}),
			wantErr: true,
		},
		{
			name:    "web item with bad category",
			item:    NewWebFeedItem(&WebItem{GUID: "g1", Category: Category("misc")}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFeedItem_ZeroValueAccessors(t *testing.T) {
	var item FeedItem

	assert.Equal(t, "", item.Key())
	assert.Equal(t, "", item.Title())
	assert.Equal(t, "", item.URL())
	assert.Equal(t, "", item.SourceName())
	assert.True(t, item.PublishedAt().IsZero())
}
