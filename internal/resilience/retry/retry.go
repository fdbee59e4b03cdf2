// Package retry provides retry logic with exponential backoff and jitter.
// It helps handle transient failures gracefully by automatically retrying failed operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first call
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration

	// Multiplier is the multiplier for exponential backoff
	Multiplier float64

	// JitterFraction is the fraction of delay to add as random jitter (0.0 to 1.0).
	// Ignored when FullJitter is set.
	JitterFraction float64

	// FullJitter draws each delay uniformly from (0, backoff] instead of
	// adding a jitter fraction on top. Used for wide fan-out (feed fetching)
	// where synchronized retries would hammer the same upstreams.
	FullJitter bool
}

// DefaultConfig returns a default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// FeedFetchConfig returns configuration for source adapter fetches.
// maxRetries is the retry budget on top of the initial attempt; backoff runs
// 1s to 30s with full jitter.
func FeedFetchConfig(maxRetries int) Config {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return Config{
		MaxAttempts:  maxRetries + 1,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		FullJitter:   true,
	}
}

// ModelAPIConfig returns configuration for language-model API calls.
// Moderate retry due to cost considerations.
func ModelAPIConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// EmbeddingConfig returns configuration for embedding endpoint calls.
func EmbeddingConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// DBConfig returns configuration optimized for database operations.
// Fast retry for transient connection issues.
func DBConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// PageFetchConfig returns configuration for rendered-page fetches.
func PageFetchConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// MailConfig returns configuration for mail submission.
func MailConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		MaxDelay:       20 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// RetryAfterProvider is implemented by errors that carry a provider-supplied
// retry-after hint (typically HTTP 429 responses). When present, the hint
// overrides the computed backoff for that attempt.
type RetryAfterProvider interface {
	RetryAfterHint() (time.Duration, bool)
}

// RetriableProvider is implemented by errors that know whether they are
// worth retrying. When present it overrides the generic classification in
// IsRetryable, in both directions.
type RetriableProvider interface {
	Retriable() bool
}

// WithBackoff executes the given function with retry logic and exponential backoff.
// It returns nil if the function succeeds, or the last error if all attempts fail.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	backoff := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()

		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return lastErr
		}

		// Don't wait after last attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := jitteredDelay(backoff, cfg)
		if hint, ok := retryAfterHint(lastErr); ok && hint > 0 {
			// The upstream told us when to come back; believe it.
			delay = hint
		}

		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxDelay {
			backoff = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

// IsRetryable determines if an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Self-classifying errors are authoritative
	var rp RetriableProvider
	if errors.As(err, &rp) {
		return rp.Retriable()
	}

	// Errors carrying a retry-after hint are retryable by definition
	var rap RetryAfterProvider
	if errors.As(err, &rap) {
		if _, ok := rap.RetryAfterHint(); ok {
			return true
		}
	}

	// Network errors (timeout)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	// HTTP status codes
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 && httpErr.StatusCode < 600 {
			return true
		}
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if httpErr.StatusCode == http.StatusRequestTimeout {
			return true
		}
	}

	return false
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// retryAfterHint extracts a provider-supplied retry-after hint, if any.
func retryAfterHint(err error) (time.Duration, bool) {
	var rap RetryAfterProvider
	if errors.As(err, &rap) {
		return rap.RetryAfterHint()
	}
	return 0, false
}

// jitteredDelay applies the configured jitter mode to a backoff value.
func jitteredDelay(backoff time.Duration, cfg Config) time.Duration {
	if cfg.FullJitter {
		// #nosec G404 -- jitter does not need cryptographic randomness.
		d := time.Duration(rand.Float64() * float64(backoff))
		if d <= 0 {
			d = time.Millisecond
		}
		return d
	}

	fraction := cfg.JitterFraction
	if fraction <= 0 {
		return backoff
	}
	if fraction > 1.0 {
		fraction = 1.0
	}
	// #nosec G404 -- jitter does not need cryptographic randomness.
	return backoff + time.Duration(rand.Float64()*float64(backoff)*fraction)
}
