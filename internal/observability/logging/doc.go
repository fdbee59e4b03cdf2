// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for common logging patterns used throughout the application.
//
// Key features:
//   - JSON and text output formats
//   - Request ID propagation
//   - Run and stage scoped loggers for the digest pipeline
//   - Configurable log levels
//
// Example usage:
//
//	import "pulse-digest/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started", slog.String("version", "1.0"))
//	}
//
//	func runStage(runID int64) {
//	    logger := logging.WithStage(logging.WithRun(slog.Default(), runID), "scrape")
//	    logger.Info("stage started")
//	}
package logging
