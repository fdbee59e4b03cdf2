package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary_Validate(t *testing.T) {
	valid := func() *Summary {
		return &Summary{
			ArticleKind: ArticleKindWeb,
			ArticleID:   "g1",
			URL:         "https://example.com/post",
			Title:       "A short title",
			Summary:     "Two sentences of prose. Enough to pass validation.",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Summary)
		wantErr bool
	}{
		{
			name:   "valid summary",
			mutate: func(*Summary) {},
		},
		{
			name:    "invalid kind",
			mutate:  func(s *Summary) { s.ArticleKind = "podcast" },
			wantErr: true,
		},
		{
			name:    "missing article id",
			mutate:  func(s *Summary) { s.ArticleID = "" },
			wantErr: true,
		},
		{
			name:    "missing title",
			mutate:  func(s *Summary) { s.Title = "" },
			wantErr: true,
		},
		{
			name:   "title at the 200 character limit",
			mutate: func(s *Summary) { s.Title = strings.Repeat("x", MaxSummaryTitleLength) },
		},
		{
			name:    "title over the limit",
			mutate:  func(s *Summary) { s.Title = strings.Repeat("x", MaxSummaryTitleLength+1) },
			wantErr: true,
		},
		{
			name: "multibyte title counts runes not bytes",
			mutate: func(s *Summary) {
				s.Title = strings.Repeat("要", MaxSummaryTitleLength)
			},
		},
		{
			name:    "missing summary text",
			mutate:  func(s *Summary) { s.Summary = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSummary_EmbeddingText(t *testing.T) {
	s := &Summary{Title: "Title", Summary: "Body text."}
	assert.Equal(t, "Title\nBody text.", s.EmbeddingText())
}

func TestSummary_RecordID(t *testing.T) {
	s := &Summary{ArticleKind: ArticleKindVideo, ArticleID: "v42"}
	assert.Equal(t, "video:v42", s.RecordID())
}

func TestSummary_IsDuplicate(t *testing.T) {
	s := &Summary{}
	assert.False(t, s.IsDuplicate())

	s.DuplicateOf = "web:earlier"
	assert.True(t, s.IsDuplicate())
}
