package fetch

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the source adapters and the page renderer.
var (
	// ErrInvalidURL indicates a malformed URL or a disallowed scheme.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrPrivateIP indicates a hostname resolving to a private, loopback or
	// link-local address.
	ErrPrivateIP = errors.New("URL resolves to private IP")

	// ErrBodyTooLarge indicates a response above the configured size cap.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTooManyRedirects indicates the redirect chain exceeded the limit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrTimeout indicates a single page request exceeded its deadline.
	// It never wraps the context error, so callers can tell a slow page
	// apart from a cancelled run.
	ErrTimeout = errors.New("page fetch timed out")

	// ErrExtractFailed indicates a page carried no readable article content.
	ErrExtractFailed = errors.New("content extraction failed")
)

// FailureKind labels the failing step of a source fetch.
type FailureKind string

const (
	// FailureHTTP is a transport or HTTP status failure.
	FailureHTTP FailureKind = "http"

	// FailureParse is a malformed feed or page.
	FailureParse FailureKind = "parse"

	// FailureValidation is a URL rejected before any request was made.
	FailureValidation FailureKind = "validation"

	// FailureRender is a rendered-page fetch or extraction failure.
	FailureRender FailureKind = "render"
)

// SourceError wraps an adapter failure with the source it came from and
// whether another attempt can succeed. The coordinator retries transient
// failures and records the rest against the run.
type SourceError struct {
	Source    string
	Kind      FailureKind
	Transient bool
	Err       error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("source %s: %s failure", e.Source, e.Kind)
	}
	return fmt.Sprintf("source %s: %s failure: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Retriable implements the retry package's classification override.
func (e *SourceError) Retriable() bool {
	return e.Transient
}

// AsSourceError extracts a SourceError from an error chain.
func AsSourceError(err error) (*SourceError, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
