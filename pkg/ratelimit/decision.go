package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitDecision is the outcome of one rate limit check, carrying
// everything the HTTP layer needs for X-RateLimit-* and Retry-After
// headers.
type RateLimitDecision struct {
	// Key is the subject of the check, e.g. a client IP.
	Key string

	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the maximum requests admitted per window.
	Limit int

	// Remaining is how many requests are left in the current window.
	// Zero on denied decisions.
	Remaining int

	// ResetAt is when the window next frees capacity.
	ResetAt time.Time

	// RetryAfter is how long a denied client should wait. Never negative.
	RetryAfter time.Duration

	// LimiterType names the limiter that decided, e.g. "ip".
	LimiterType string
}

func (d *RateLimitDecision) String() string {
	if d.Allowed {
		return fmt.Sprintf("allowed key=%s type=%s remaining=%d/%d reset=%s",
			d.Key, d.LimiterType, d.Remaining, d.Limit, d.ResetAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("denied key=%s type=%s limit=%d retry_after=%s",
		d.Key, d.LimiterType, d.Limit, d.RetryAfter)
}

// IsDenied is the negation of Allowed, for readable middleware code.
func (d *RateLimitDecision) IsDenied() bool {
	return !d.Allowed
}

// ResetAtUnix is ResetAt as a Unix timestamp for the
// X-RateLimit-Reset header.
func (d *RateLimitDecision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds is RetryAfter in whole seconds, clamped at zero,
// for the Retry-After header.
func (d *RateLimitDecision) RetryAfterSeconds() int64 {
	seconds := int64(d.RetryAfter.Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

// NewAllowedDecision builds an admitted decision.
func NewAllowedDecision(key, limiterType string, limit, remaining int, resetAt time.Time) *RateLimitDecision {
	return &RateLimitDecision{
		Key:         key,
		Allowed:     true,
		Limit:       limit,
		Remaining:   remaining,
		ResetAt:     resetAt,
		RetryAfter:  clampNonNegative(time.Until(resetAt)),
		LimiterType: limiterType,
	}
}

// NewDeniedDecision builds a rejected decision with Remaining forced
// to zero.
func NewDeniedDecision(key, limiterType string, limit int, resetAt time.Time) *RateLimitDecision {
	return &RateLimitDecision{
		Key:         key,
		Allowed:     false,
		Limit:       limit,
		Remaining:   0,
		ResetAt:     resetAt,
		RetryAfter:  clampNonNegative(time.Until(resetAt)),
		LimiterType: limiterType,
	}
}

func clampNonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
