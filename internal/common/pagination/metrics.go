package pagination

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts paginated list requests.
	// page_range buckets keep cardinality bounded while still showing
	// whether clients crawl deep pages.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_pagination_requests_total",
			Help: "Total number of paginated list requests",
		},
		[]string{"status", "page_range"},
	)

	// DurationSeconds tracks listing duration per layer.
	DurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "summary_pagination_duration_seconds",
			Help:    "Paginated list request duration distribution",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0},
		},
		[]string{"operation"},
	)

	// TotalCount mirrors the last COUNT(*) seen by a listing query.
	TotalCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "summary_total_count",
			Help: "Current total number of stored summaries",
		},
	)

	// ErrorsTotal counts listing failures by type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_pagination_errors_total",
			Help: "Total number of pagination errors",
		},
		[]string{"type"},
	)
)

// RecordRequest counts one paginated request.
func RecordRequest(statusCode int, page int) {
	RequestsTotal.WithLabelValues(fmt.Sprintf("%d", statusCode), pageRangeBucket(page)).Inc()
}

// RecordDuration observes one operation's duration in seconds.
// operation is one of "handler", "usecase", "repository".
func RecordDuration(operation string, duration float64) {
	DurationSeconds.WithLabelValues(operation).Observe(duration)
}

// UpdateTotalCount publishes the latest total row count.
func UpdateTotalCount(count int64) {
	TotalCount.Set(float64(count))
}

// RecordError counts a failure; errorType is one of "validation",
// "database", "timeout".
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

func pageRangeBucket(page int) string {
	switch {
	case page <= 10:
		return "1-10"
	case page <= 50:
		return "11-50"
	case page <= 100:
		return "51-100"
	default:
		return "100+"
	}
}
