package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pulse-digest/internal/handler/http/pathutil"
	"pulse-digest/internal/handler/http/responsewriter"
	"pulse-digest/internal/observability/metrics"
)

// httpRequestsInFlight tracks requests currently being processed. The rest of
// the HTTP metrics live in the central registry so usecases can record them
// without importing the handler package.
var httpRequestsInFlight = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	},
)

// MetricsMiddleware records HTTP request metrics: in-flight gauge, duration,
// request/response sizes and status code distribution. Paths are normalized
// (/api/v1/runs/123 -> /api/v1/runs/:id) to keep label cardinality bounded.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()

		normalizedPath := pathutil.NormalizePath(r.URL.Path)

		requestSize := 0
		if r.ContentLength > 0 {
			requestSize = int(r.ContentLength)
		}

		wrapped := responsewriter.Wrap(w)

		start := time.Now()
		next.ServeHTTP(wrapped, r)

		metrics.RecordHTTPRequest(
			r.Method,
			normalizedPath,
			strconv.Itoa(wrapped.StatusCode()),
			time.Since(start),
			requestSize,
			wrapped.BytesWritten(),
		)
	})
}

// MetricsHandler returns the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
