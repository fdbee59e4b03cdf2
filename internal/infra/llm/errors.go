package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"
)

// ErrorKind classifies a model call failure. The pipeline treats the kinds
// differently: rate-limited and transient failures are retried, invalid
// replies are re-asked a bounded number of times, permanent failures fail
// the item and the run moves on.
type ErrorKind string

const (
	// ErrKindRateLimited is a 429 from the provider. RetryAfter carries the
	// provider's hint when it sent one.
	ErrKindRateLimited ErrorKind = "rate_limited"

	// ErrKindTransient covers 5xx, timeouts and connection resets.
	ErrKindTransient ErrorKind = "transient"

	// ErrKindInvalid marks a reply that could not be parsed into the shape
	// the caller asked for. The call itself succeeded.
	ErrKindInvalid ErrorKind = "invalid"

	// ErrKindPermanent covers auth failures, bad requests and anything else
	// a retry cannot fix.
	ErrKindPermanent ErrorKind = "permanent"
)

// ModelError wraps a provider failure with its classification.
type ModelError struct {
	Kind ErrorKind

	// RetryAfter is the provider-supplied wait hint. Only meaningful for
	// rate-limited errors; zero means the provider gave none.
	RetryAfter time.Duration

	Err error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("model error (%s)", e.Kind)
	}
	return fmt.Sprintf("model error (%s): %v", e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Retriable reports whether another attempt can succeed. Implements the
// retry package's classification override.
func (e *ModelError) Retriable() bool {
	return e.Kind == ErrKindRateLimited || e.Kind == ErrKindTransient
}

// RetryAfterHint returns the provider's wait hint, if any.
func (e *ModelError) RetryAfterHint() (time.Duration, bool) {
	if e.Kind == ErrKindRateLimited && e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}

// IsModelError extracts a ModelError from an error chain.
func IsModelError(err error) (*ModelError, bool) {
	var me *ModelError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// mapStatus classifies an HTTP status from a provider API.
func mapStatus(status int, retryAfter time.Duration, err error) *ModelError {
	switch {
	case status == http.StatusTooManyRequests:
		return &ModelError{Kind: ErrKindRateLimited, RetryAfter: retryAfter, Err: err}
	case status == http.StatusRequestTimeout || status >= 500:
		return &ModelError{Kind: ErrKindTransient, Err: err}
	default:
		return &ModelError{Kind: ErrKindPermanent, Err: err}
	}
}

// classifyTransportError classifies an error that carried no HTTP status.
// Context errors pass through unchanged so cancellation stays visible to
// the run state machine.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ModelError{Kind: ErrKindTransient, Err: err}
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return &ModelError{Kind: ErrKindTransient, Err: err}
	}

	return &ModelError{Kind: ErrKindPermanent, Err: err}
}

// retryAfterHeader parses a Retry-After response header. Accepts both the
// delta-seconds and HTTP-date forms; zero means absent or unparseable.
func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
