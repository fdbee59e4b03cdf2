// Package tracing provides OpenTelemetry tracing integration.
//
// Features:
//   - Automatic HTTP request tracing with trace ID response headers
//   - Pipeline stage spans tagged with the run ID
//   - W3C Trace Context propagation from incoming requests
//
// Example usage:
//
//	import "pulse-digest/internal/observability/tracing"
//
//	func handleRequests(mux http.Handler) http.Handler {
//	    return tracing.Middleware(mux)
//	}
//
//	func runStage(ctx context.Context, runID int64) {
//	    ctx, span := tracing.StartStageSpan(ctx, runID, "digest")
//	    defer span.End()
//	    // ... stage work ...
//	}
package tracing
