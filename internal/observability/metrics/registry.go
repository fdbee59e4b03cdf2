// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Pipeline metrics track digest run progress and stage performance
var (
	// RunsTotal counts pipeline runs by terminal state
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_runs_total",
			Help: "Total number of digest pipeline runs by terminal state",
		},
		[]string{"state"},
	)

	// RunDuration measures end-to-end pipeline run duration
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_run_duration_seconds",
			Help:    "End-to-end digest pipeline run duration",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// StageDuration measures the duration of each pipeline stage
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digest_stage_duration_seconds",
			Help:    "Duration of each digest pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"stage"},
	)

	// RunsActive tracks currently executing pipeline runs
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "digest_runs_active",
			Help: "Number of digest pipeline runs currently executing",
		},
	)

	// ItemsScrapedTotal counts items scraped per source
	ItemsScrapedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_scraped_total",
			Help: "Total number of feed items scraped per source",
		},
		[]string{"source", "kind"},
	)

	// AdapterErrors counts scrape adapter failures
	AdapterErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_adapter_errors_total",
			Help: "Total number of scrape adapter failures",
		},
		[]string{"source", "error_type"},
	)

	// AdapterDuration measures per-adapter scrape duration
	AdapterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrape_adapter_duration_seconds",
			Help:    "Time taken to scrape one source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)
)

// Model metrics track summarization, ranking and email generation calls
var (
	// SummariesTotal counts summarization outcomes
	SummariesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summaries_total",
			Help: "Total number of summarization attempts by status",
		},
		[]string{"status"},
	)

	// SummarizationDuration measures time to summarize one item
	SummarizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "summarization_duration_seconds",
			Help:    "Time taken to summarize a feed item",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// ModelCallsTotal counts calls to the configured model provider
	ModelCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_calls_total",
			Help: "Total number of model API calls by provider, purpose and status",
		},
		[]string{"provider", "purpose", "status"},
	)

	// RankDegradedTotal counts runs that fell back to recency ordering
	RankDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rank_degraded_total",
			Help: "Total number of runs where ranking degraded to recency ordering",
		},
	)
)

// Vector metrics track embedding and semantic index operations
var (
	// EmbeddingBatchesTotal counts embedding batch calls by status
	EmbeddingBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_batches_total",
			Help: "Total number of embedding batch calls by status",
		},
		[]string{"status"},
	)

	// EmbeddingDuration measures embedding call duration
	EmbeddingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "embedding_duration_seconds",
			Help:    "Time taken to embed one batch of texts",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	// VectorOpsTotal counts semantic index operations
	VectorOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vector_ops_total",
			Help: "Total number of vector index operations by kind and status",
		},
		[]string{"op", "status"},
	)

	// DuplicatesSuppressedTotal counts summaries marked as near-duplicates
	DuplicatesSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicates_suppressed_total",
			Help: "Total number of summaries suppressed as near-duplicates",
		},
	)
)

// Delivery metrics track rendered page fetching and email delivery
var (
	// ContentFetchAttemptsTotal counts page render attempts by result
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of page content fetch attempts",
		},
		[]string{"result"}, // result: success, failure, skipped
	)

	// ContentFetchDuration measures time to fetch page content
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to fetch page content",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// ContentFetchSize measures fetched content size in bytes
	ContentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "content_fetch_size_bytes",
			Help: "Fetched page content size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)

	// EmailsSentTotal counts digest email deliveries by status
	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of digest email deliveries by status",
		},
		[]string{"status"},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
