// Package ratelimit provides framework-agnostic request rate limiting
// with pluggable stores, algorithms, and metrics sinks. The HTTP layer
// composes these pieces into per-IP limiting for the digest API.
package ratelimit

import (
	"context"
	"time"
)

// RateLimitStore persists request timestamps per key. Keys are opaque
// to the store; the API layer uses client IPs. Implementations must be
// safe for concurrent use.
type RateLimitStore interface {
	// AddRequest records one request for key at the given time.
	AddRequest(ctx context.Context, key string, timestamp time.Time) error

	// GetRequests returns the timestamps for key newer than cutoff.
	GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error)

	// GetRequestCount counts timestamps for key newer than cutoff.
	GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error)

	// Cleanup drops timestamps older than cutoff across all keys and
	// removes keys left empty.
	Cleanup(ctx context.Context, cutoff time.Time) error

	// KeyCount reports the number of live keys, for memory monitoring.
	KeyCount(ctx context.Context) (int, error)
}

// AtomicRateLimitStore extends RateLimitStore with a combined
// check-and-record operation. Without it the count and the add happen
// under separate lock acquisitions, and concurrent requests can slip
// past the limit.
type AtomicRateLimitStore interface {
	RateLimitStore

	// CheckAndAddRequest counts requests newer than cutoff and, when the
	// count is below limit, records the new timestamp in the same
	// critical section. It reports whether the request was admitted and
	// the in-window count after the call.
	CheckAndAddRequest(ctx context.Context, key string, timestamp, cutoff time.Time, limit int) (allowed bool, count int, err error)
}

// RateLimitAlgorithm decides whether a request identified by key is
// admitted given the state in store.
type RateLimitAlgorithm interface {
	IsAllowed(ctx context.Context, key string, store RateLimitStore, limit int, window time.Duration) (*RateLimitDecision, error)

	// GetWindowDuration reports the window last used, for computing
	// Retry-After hints.
	GetWindowDuration() time.Duration
}

// RateLimitMetrics receives rate limiter telemetry. The Prometheus
// implementation is used in production; NoOpMetrics in tests.
type RateLimitMetrics interface {
	RecordAllowed(limiterType, endpoint string)
	RecordDenied(limiterType, endpoint string)
	RecordCheckDuration(limiterType string, duration time.Duration)
	SetActiveKeys(limiterType string, count int)
	RecordEviction(limiterType string, count int)
}

// Clock abstracts time.Now so window arithmetic is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}
