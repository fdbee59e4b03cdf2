// Package requestid assigns each HTTP request a stable ID so that every
// log line a request produces can be correlated, across the API and the
// pipeline stages it triggers.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey struct{}

// RequestIDHeader is the header the ID travels in, both directions.
const RequestIDHeader = "X-Request-ID"

// FromContext returns the request ID stored in ctx, or "" when the
// request never went through Middleware.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID returns a child context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware propagates an inbound X-Request-ID or generates a UUID v4
// when the client sent none. The ID is echoed on the response so callers
// can quote it in bug reports.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
