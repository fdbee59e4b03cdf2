package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SlidingWindowAlgorithm admits a request when fewer than limit
// requests were recorded in the trailing window. Tracking individual
// timestamps avoids the boundary bursts of fixed windows: a client
// cannot double its budget by straddling two windows.
//
// The algorithm also guards against the system clock stepping
// backwards (NTP corrections). The last timestamp seen per key is
// remembered, and an earlier "now" is replaced by it so that a clock
// step can never reopen a closed window.
type SlidingWindowAlgorithm struct {
	clock Clock

	mu             sync.RWMutex
	lastTimestamps map[string]time.Time
	windowDuration time.Duration
}

// NewSlidingWindowAlgorithm builds the algorithm. A nil clock means
// SystemClock.
func NewSlidingWindowAlgorithm(clock Clock) *SlidingWindowAlgorithm {
	if clock == nil {
		clock = &SystemClock{}
	}
	return &SlidingWindowAlgorithm{
		clock:          clock,
		lastTimestamps: make(map[string]time.Time),
	}
}

// IsAllowed checks and records one request for key. Stores implementing
// AtomicRateLimitStore get the race-free path; plain stores fall back to
// count-then-add, which can over-admit under heavy concurrency.
func (a *SlidingWindowAlgorithm) IsAllowed(
	ctx context.Context,
	key string,
	store RateLimitStore,
	limit int,
	window time.Duration,
) (*RateLimitDecision, error) {
	a.mu.Lock()
	a.windowDuration = window
	a.mu.Unlock()

	now := a.validTimestamp(key)
	cutoff := now.Add(-window)
	resetAt := now.Add(window)

	if atomicStore, ok := store.(AtomicRateLimitStore); ok {
		allowed, count, err := atomicStore.CheckAndAddRequest(ctx, key, now, cutoff, limit)
		if err != nil {
			return nil, fmt.Errorf("check and add request: %w", err)
		}
		if allowed {
			return NewAllowedDecision(key, "unknown", limit, limit-count, resetAt), nil
		}
		return a.denied(key, limit, now, resetAt), nil
	}

	count, err := store.GetRequestCount(ctx, key, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get request count: %w", err)
	}
	if count >= limit {
		return a.denied(key, limit, now, resetAt), nil
	}
	if err := store.AddRequest(ctx, key, now); err != nil {
		return nil, fmt.Errorf("add request: %w", err)
	}
	return NewAllowedDecision(key, "unknown", limit, limit-count-1, resetAt), nil
}

func (a *SlidingWindowAlgorithm) denied(key string, limit int, now, resetAt time.Time) *RateLimitDecision {
	decision := NewDeniedDecision(key, "unknown", limit, resetAt)
	decision.RetryAfter = resetAt.Sub(now)
	return decision
}

// GetWindowDuration reports the window last passed to IsAllowed.
func (a *SlidingWindowAlgorithm) GetWindowDuration() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.windowDuration
}

// validTimestamp returns the current time, substituting the last seen
// timestamp for key when the clock has gone backwards.
func (a *SlidingWindowAlgorithm) validTimestamp(key string) time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if lastSeen, ok := a.lastTimestamps[key]; ok && now.Before(lastSeen) {
		slog.Warn("clock skew detected, using last valid timestamp",
			slog.String("key", key),
			slog.Time("now", now),
			slog.Time("last_seen", lastSeen),
			slog.Duration("skew", lastSeen.Sub(now)),
		)
		return lastSeen
	}

	a.lastTimestamps[key] = now
	return now
}

// CleanupExpiredTimestamps drops skew-tracking entries older than
// maxAge. Call it from the same loop that cleans the store, or the map
// grows with every client ever seen.
func (a *SlidingWindowAlgorithm) CleanupExpiredTimestamps(maxAge time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.clock.Now().Add(-maxAge)
	removed := 0
	for key, timestamp := range a.lastTimestamps {
		if timestamp.Before(cutoff) {
			delete(a.lastTimestamps, key)
			removed++
		}
	}
	return removed
}

// GetTrackedKeysCount reports how many keys have skew-tracking state.
func (a *SlidingWindowAlgorithm) GetTrackedKeysCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.lastTimestamps)
}
