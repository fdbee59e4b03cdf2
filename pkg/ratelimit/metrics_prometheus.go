package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics records limiter telemetry against its own registry
// rather than the process default, so tests get isolated metrics and
// the API server exposes them under its existing /metrics handler by
// gathering both registries.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// requestsTotal: labels limiter_type ("ip"), status
	// ("allowed"/"denied"), path.
	requestsTotal *prometheus.CounterVec

	// checkDuration buckets target sub-5ms checks; anything in the
	// 100ms+ buckets means the store is misbehaving.
	checkDuration *prometheus.HistogramVec

	activeKeys     *prometheus.GaugeVec
	evictionsTotal *prometheus.CounterVec
}

// NewPrometheusMetrics builds and registers the metric set on a fresh
// registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limit_requests_total",
			Help: "Total rate limit requests by limiter type, status, and path",
		},
		[]string{"limiter_type", "status", "path"},
	)

	checkDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_rate_limit_check_duration_seconds",
			Help:    "Duration of rate limit check operations",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"limiter_type"},
	)

	activeKeys := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_rate_limit_active_keys",
			Help: "Current number of active keys by limiter type",
		},
		[]string{"limiter_type"},
	)

	evictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limit_evictions_total",
			Help: "Total LRU evictions by limiter type",
		},
		[]string{"limiter_type"},
	)

	registry.MustRegister(requestsTotal, checkDuration, activeKeys, evictionsTotal)

	return &PrometheusMetrics{
		registry:       registry,
		requestsTotal:  requestsTotal,
		checkDuration:  checkDuration,
		activeKeys:     activeKeys,
		evictionsTotal: evictionsTotal,
	}
}

// Registry exposes the registry for promhttp.HandlerFor or for merging
// into a gatherer list.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAllowed counts an admitted request.
func (m *PrometheusMetrics) RecordAllowed(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "allowed", endpoint).Inc()
}

// RecordDenied counts a rejected request.
func (m *PrometheusMetrics) RecordDenied(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "denied", endpoint).Inc()
}

// RecordCheckDuration observes one check's latency.
func (m *PrometheusMetrics) RecordCheckDuration(limiterType string, duration time.Duration) {
	m.checkDuration.WithLabelValues(limiterType).Observe(duration.Seconds())
}

// SetActiveKeys publishes the live key count. Alert near MaxActiveKeys;
// sustained evictions usually mean a scan or a limit set too low.
func (m *PrometheusMetrics) SetActiveKeys(limiterType string, count int) {
	m.activeKeys.WithLabelValues(limiterType).Set(float64(count))
}

// RecordEviction counts LRU evictions.
func (m *PrometheusMetrics) RecordEviction(limiterType string, count int) {
	m.evictionsTotal.WithLabelValues(limiterType).Add(float64(count))
}
