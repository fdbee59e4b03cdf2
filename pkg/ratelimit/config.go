package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitConfig holds the tunables for per-IP limiting on the digest
// API. The API is operator-facing with a handful of clients, so there
// is a single global limit; per-endpoint or per-user tiers would be
// configuration surface without a consumer.
type RateLimitConfig struct {
	// DefaultIPLimit is the number of requests admitted per IP per
	// window.
	DefaultIPLimit int

	// DefaultIPWindow is the sliding window length.
	DefaultIPWindow time.Duration

	// MaxActiveKeys bounds distinct IPs held in memory.
	MaxActiveKeys int

	// CleanupInterval is how often expired entries are pruned.
	CleanupInterval time.Duration

	// CleanupMaxAge is the age past which entries are pruned.
	CleanupMaxAge time.Duration

	// Enabled turns the limiter on. Disabled limiters pass every
	// request through untouched.
	Enabled bool
}

// Validate rejects negative values. Zero values are legal; they are
// replaced by ApplyDefaults.
func (c *RateLimitConfig) Validate() error {
	if c.DefaultIPLimit < 0 {
		return fmt.Errorf("DefaultIPLimit must be non-negative, got %d", c.DefaultIPLimit)
	}
	if c.DefaultIPWindow < 0 {
		return fmt.Errorf("DefaultIPWindow must be non-negative, got %s", c.DefaultIPWindow)
	}
	if c.MaxActiveKeys < 0 {
		return fmt.Errorf("MaxActiveKeys must be non-negative, got %d", c.MaxActiveKeys)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("CleanupInterval must be non-negative, got %s", c.CleanupInterval)
	}
	if c.CleanupMaxAge < 0 {
		return fmt.Errorf("CleanupMaxAge must be non-negative, got %s", c.CleanupMaxAge)
	}
	return nil
}

// ApplyDefaults fills zero fields with production values:
// 100 requests/minute per IP, 10k tracked IPs, pruning every 5 minutes.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.DefaultIPLimit == 0 {
		c.DefaultIPLimit = 100
	}
	if c.DefaultIPWindow == 0 {
		c.DefaultIPWindow = 1 * time.Minute
	}
	if c.MaxActiveKeys == 0 {
		c.MaxActiveKeys = 10000
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.CleanupMaxAge == 0 {
		c.CleanupMaxAge = 1 * time.Hour
	}
	if !c.Enabled {
		c.Enabled = true
	}
}

// DefaultConfig returns a config with every field defaulted.
func DefaultConfig() *RateLimitConfig {
	config := &RateLimitConfig{}
	config.ApplyDefaults()
	return config
}
