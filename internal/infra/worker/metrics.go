package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pulse-digest/internal/pkg/config"
)

// WorkerMetrics exposes the scheduled worker's Prometheus metrics: the
// embedded config-fallback metrics plus per-run outcome tracking.
//
//   - worker_digest_runs_total{status}: run outcomes (success/failure)
//   - worker_digest_run_duration_seconds: end-to-end run duration
//   - worker_items_harvested_total: items persisted across all runs
//   - worker_last_success_timestamp: Unix time of the last good run,
//     the alerting signal for "the digest stopped arriving"
type WorkerMetrics struct {
	*config.ConfigMetrics

	DigestRunsTotal          *prometheus.CounterVec
	DigestRunDurationSeconds prometheus.Histogram
	ItemsHarvestedTotal      prometheus.Counter
	LastSuccessTimestamp     prometheus.Gauge
}

// NewWorkerMetrics registers and returns the worker metrics. promauto
// registration means a second call in one process panics; construct once
// in main.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		DigestRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_digest_runs_total",
			Help: "Total scheduled digest runs by status (success/failure)",
		}, []string{"status"}),

		DigestRunDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "worker_digest_run_duration_seconds",
			Help: "End-to-end duration of scheduled digest runs in seconds",
			// 典型的なランは数分、レンダリング混みで数十分
			Buckets: []float64{5, 30, 60, 300, 900, 1800, 3600},
		}),

		ItemsHarvestedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_items_harvested_total",
			Help: "Total items harvested across all scheduled runs",
		}),

		LastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_last_success_timestamp",
			Help: "Unix timestamp of the last successful digest run",
		}),
	}
}

// RecordRun counts one run outcome; status is "success" or "failure".
func (m *WorkerMetrics) RecordRun(status string) {
	m.DigestRunsTotal.WithLabelValues(status).Inc()
}

// RecordRunDuration observes one run's duration in seconds.
func (m *WorkerMetrics) RecordRunDuration(seconds float64) {
	m.DigestRunDurationSeconds.Observe(seconds)
}

// RecordItemsHarvested adds the number of items a run persisted.
func (m *WorkerMetrics) RecordItemsHarvested(count int) {
	m.ItemsHarvestedTotal.Add(float64(count))
}

// RecordLastSuccess stamps the last-success gauge with the current time.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.LastSuccessTimestamp.SetToCurrentTime()
}
