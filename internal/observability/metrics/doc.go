// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Pipeline metrics (runs, stages, scraped items)
//   - Model and embedding call metrics
//   - Vector index and email delivery metrics
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "pulse-digest/internal/observability/metrics"
//
//	func scrapeSource(name string) {
//	    start := time.Now()
//	    // ... scrape ...
//	    metrics.RecordItemsScraped(name, "web", 10)
//	    metrics.RecordAdapterDuration(name, time.Since(start))
//	}
package metrics
