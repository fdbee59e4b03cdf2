// Package digest provides the HTTP handlers of the request plane: pipeline
// runs, on-demand digest delivery, semantic search and archive listings.
package digest

import (
	"time"

	"pulse-digest/internal/domain/entity"
	"pulse-digest/internal/repository"
)

// RunDTO represents the JSON structure of one pipeline run.
type RunDTO struct {
	ID          int64       `json:"id" example:"42"`
	StartedAt   time.Time   `json:"started_at" example:"2026-02-10T06:00:00Z"`
	FinishedAt  *time.Time  `json:"finished_at,omitempty"`
	WindowHours int         `json:"window_hours" example:"24"`
	TopN        int         `json:"top_n" example:"10"`
	Stage       string      `json:"stage" example:"rank"`
	State       string      `json:"state" example:"running"`
	Counters    CountersDTO `json:"counters"`
	Error       string      `json:"error,omitempty"`
}

// CountersDTO mirrors the run counters.
type CountersDTO struct {
	Scraped        int            `json:"scraped"`
	NewItems       int            `json:"new_items"`
	Summarized     int            `json:"summarized"`
	Indexed        int            `json:"indexed"`
	Ranked         int            `json:"ranked"`
	Emailed        int            `json:"emailed"`
	Rendered       int            `json:"rendered"`
	Skipped        int            `json:"skipped"`
	FailedAdapters []string       `json:"failed_adapters,omitempty"`
	FailureCounts  map[string]int `json:"failure_counts,omitempty"`
}

func runDTO(run *entity.RunRecord) RunDTO {
	return RunDTO{
		ID:          run.ID,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		WindowHours: run.WindowHours,
		TopN:        run.TopN,
		Stage:       string(run.Stage),
		State:       string(run.State),
		Counters: CountersDTO{
			Scraped:        run.Counters.Scraped,
			NewItems:       run.Counters.NewItems,
			Summarized:     run.Counters.Summarized,
			Indexed:        run.Counters.Indexed,
			Ranked:         run.Counters.Ranked,
			Emailed:        run.Counters.Emailed,
			Rendered:       run.Counters.Rendered,
			Skipped:        run.Counters.Skipped,
			FailedAdapters: run.Counters.FailedAdapters,
			FailureCounts:  run.Counters.FailureCounts,
		},
		Error: run.Error,
	}
}

// SummaryDTO represents one archived summary with its publication metadata.
type SummaryDTO struct {
	Kind        string    `json:"kind" example:"web"`
	ID          string    `json:"id" example:"3f7a9c"`
	Title       string    `json:"title" example:"Tool use improvements land in the API"`
	URL         string    `json:"url" example:"https://example.com/post"`
	Summary     string    `json:"summary"`
	SourceName  string    `json:"source_name" example:"example-blog"`
	Category    string    `json:"category,omitempty" example:"news"`
	PublishedAt time.Time `json:"published_at"`
	DuplicateOf string    `json:"duplicate_of,omitempty" example:"web:1a2b3c"`
	CreatedAt   time.Time `json:"created_at"`
}

func summaryDTO(m repository.SummaryWithMeta) SummaryDTO {
	return SummaryDTO{
		Kind:        string(m.Summary.ArticleKind),
		ID:          m.Summary.ArticleID,
		Title:       m.Summary.Title,
		URL:         m.Summary.URL,
		Summary:     m.Summary.Summary,
		SourceName:  m.SourceName,
		Category:    string(m.Category),
		PublishedAt: m.PublishedAt,
		DuplicateOf: m.Summary.DuplicateOf,
		CreatedAt:   m.Summary.CreatedAt,
	}
}

// SearchHitDTO represents one semantic search result.
type SearchHitDTO struct {
	RecordID    string    `json:"record_id" example:"web:3f7a9c"`
	Kind        string    `json:"kind" example:"web"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	Category    string    `json:"category,omitempty"`
	SourceName  string    `json:"source_name"`
	PublishedAt time.Time `json:"published_at"`
	Similarity  float64   `json:"similarity" example:"0.83"`
}

func searchHitDTO(h entity.SearchHit) SearchHitDTO {
	return SearchHitDTO{
		RecordID:    h.RecordID,
		Kind:        string(h.ArticleKind),
		Title:       h.Title,
		URL:         h.URL,
		Summary:     h.Summary,
		Category:    string(h.Category),
		SourceName:  h.SourceName,
		PublishedAt: h.PublishedAt,
		Similarity:  h.Similarity,
	}
}

// VideoItemDTO represents one harvested video item.
type VideoItemDTO struct {
	VideoID     string    `json:"video_id" example:"dQw4w9WgXcQ"`
	ChannelID   string    `json:"channel_id" example:"UCXZCJLdBC09xxGZ6gcdrc6A"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	HasBody     bool      `json:"has_transcript"`
}

// WebItemDTO represents one harvested web item.
type WebItemDTO struct {
	ID          string    `json:"id" example:"3f7a9c"`
	SourceName  string    `json:"source_name" example:"example-blog"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Category    string    `json:"category" example:"official"`
	PublishedAt time.Time `json:"published_at"`
}

// StatsDTO is the corpus and engine snapshot.
type StatsDTO struct {
	Videos     int64   `json:"videos"`
	Webs       int64   `json:"webs"`
	Summaries  int64   `json:"summaries"`
	Duplicates int64   `json:"duplicates"`
	Vectors    int64   `json:"vectors"`
	ActiveRuns int     `json:"active_runs"`
	LastRun    *RunDTO `json:"last_run,omitempty"`
}
