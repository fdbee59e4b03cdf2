package fetcher

import (
	"fmt"
	"time"

	"pulse-digest/internal/config"
)

// RenderConfig controls the page renderer: how long a single page may take,
// how many pages render at once, and the security limits applied to every
// outbound request.
type RenderConfig struct {
	// Timeout is the per-URL deadline for fetch plus extraction.
	Timeout time.Duration

	// Concurrency caps in-flight renders across all rendered sources.
	Concurrency int

	// MaxBodySize is the response size cap in bytes. Bodies above it are
	// rejected while reading, regardless of Content-Length.
	MaxBodySize int64

	// MaxRedirects bounds the redirect chain. Every hop is re-validated.
	MaxRedirects int

	// DenyPrivateIPs rejects URLs resolving to private, loopback or
	// link-local addresses. Disable only in tests against local servers.
	DenyPrivateIPs bool
}

// DefaultRenderConfig returns production defaults.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Timeout:        60 * time.Second,
		Concurrency:    2,
		MaxBodySize:    10 * 1024 * 1024, // 10MiB
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
}

// RenderConfigFromPipeline overlays the pipeline's render knobs onto the
// defaults.
func RenderConfigFromPipeline(cfg *config.PipelineConfig) RenderConfig {
	rc := DefaultRenderConfig()
	rc.Timeout = cfg.RenderTimeout
	rc.Concurrency = cfg.RenderConcurrency
	return rc
}

// Validate rejects values that would make the renderer unsafe or useless.
func (c *RenderConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("render timeout must be positive, got %v", c.Timeout)
	}

	if c.Concurrency < 1 || c.Concurrency > 16 {
		return fmt.Errorf("render concurrency must be between 1 and 16, got %d", c.Concurrency)
	}

	minBodySize := int64(1024)
	maxBodySize := int64(100 * 1024 * 1024)
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	return nil
}
