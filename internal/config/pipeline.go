package config

import (
	"fmt"
	"time"
)

// PipelineConfig holds the orchestration knobs for a digest run. Per-run
// request parameters (window, top N) can override the configured defaults.
type PipelineConfig struct {
	// WindowHours is the default harvest window. Default: 24
	WindowHours int

	// TopN is the default number of items in the digest email. Default: 10
	TopN int

	// FetchConcurrency bounds concurrent source adapters. Default: 8
	FetchConcurrency int

	// RenderConcurrency bounds concurrent rendered-page fetches. Default: 2
	RenderConcurrency int

	// FetchTimeout bounds one adapter's scrape. Default: 120s
	FetchTimeout time.Duration

	// RenderTimeout bounds one rendered-page fetch. Default: 60s
	RenderTimeout time.Duration

	// FetchMaxRetries for transient feed fetch failures. Default: 3
	FetchMaxRetries int

	// ParseMaxRetries for transient parse failures. Default: 2
	ParseMaxRetries int

	// DupThreshold is the cosine similarity at or above which a new summary
	// is suppressed as a near-duplicate. Default: 0.95
	DupThreshold float64

	// RankContextK is how many historical neighbours feed the ranking
	// prompt. Default: 5
	RankContextK int

	// SkipEmail suppresses delivery while still running every other stage.
	// Default: false
	SkipEmail bool
}

// LoadPipelineConfig loads pipeline configuration from environment variables.
// Returns a config with defaults if environment variables are not set.
func LoadPipelineConfig() (*PipelineConfig, error) {
	config := &PipelineConfig{
		WindowHours:       getEnvInt("WINDOW_HOURS", 24),
		TopN:              getEnvInt("TOP_N", 10),
		FetchConcurrency:  getEnvInt("FETCH_CONCURRENCY", 8),
		RenderConcurrency: getEnvInt("RENDER_CONCURRENCY", 2),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 120*time.Second),
		RenderTimeout:     getEnvDuration("RENDER_TIMEOUT", 60*time.Second),
		FetchMaxRetries:   getEnvInt("FETCH_MAX_RETRIES", 3),
		ParseMaxRetries:   getEnvInt("PARSE_MAX_RETRIES", 2),
		DupThreshold:      getEnvFloat("DUP_THRESHOLD", 0.95),
		RankContextK:      getEnvInt("RANK_CONTEXT_K", 5),
		SkipEmail:         getEnvBool("SKIP_EMAIL", false),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	return config, nil
}

// Validate checks configuration correctness.
func (c *PipelineConfig) Validate() error {
	if c.WindowHours <= 0 || c.WindowHours > 168 {
		return fmt.Errorf("WINDOW_HOURS must be between 1 and 168, got %d", c.WindowHours)
	}

	if c.TopN <= 0 || c.TopN > 100 {
		return fmt.Errorf("TOP_N must be between 1 and 100, got %d", c.TopN)
	}

	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("FETCH_CONCURRENCY must be positive")
	}

	if c.RenderConcurrency <= 0 {
		return fmt.Errorf("RENDER_CONCURRENCY must be positive")
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}

	if c.RenderTimeout <= 0 {
		return fmt.Errorf("RENDER_TIMEOUT must be positive")
	}

	if c.FetchMaxRetries < 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES cannot be negative")
	}

	if c.ParseMaxRetries < 0 {
		return fmt.Errorf("PARSE_MAX_RETRIES cannot be negative")
	}

	if c.DupThreshold <= 0 || c.DupThreshold > 1 {
		return fmt.Errorf("DUP_THRESHOLD must be in (0.0, 1.0], got %v", c.DupThreshold)
	}

	if c.RankContextK < 0 || c.RankContextK > 20 {
		return fmt.Errorf("RANK_CONTEXT_K must be between 0 and 20, got %d", c.RankContextK)
	}

	return nil
}

// Window converts the configured window hours to a duration.
func (c *PipelineConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}
