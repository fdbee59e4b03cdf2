package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWorkerMetrics(t *testing.T) {
	// 共有インスタンスを使う（promauto は二重登録で panic する）
	metrics := globalTestMetrics

	if metrics == nil {
		t.Fatal("NewWorkerMetrics returned nil")
	}
	if metrics.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}
	if metrics.DigestRunsTotal == nil {
		t.Error("DigestRunsTotal is nil")
	}
	if metrics.DigestRunDurationSeconds == nil {
		t.Error("DigestRunDurationSeconds is nil")
	}
	if metrics.ItemsHarvestedTotal == nil {
		t.Error("ItemsHarvestedTotal is nil")
	}
	if metrics.LastSuccessTimestamp == nil {
		t.Error("LastSuccessTimestamp is nil")
	}
}

func TestWorkerMetrics_RecordRun(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_worker_digest_runs_total",
		Help: "test counter",
	}, []string{"status"})

	metrics := &WorkerMetrics{DigestRunsTotal: counter}

	metrics.RecordRun("success")
	metrics.RecordRun("success")
	metrics.RecordRun("failure")

	if got := testutil.ToFloat64(counter.WithLabelValues("success")); got != 2 {
		t.Errorf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("failure")); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
}

func TestWorkerMetrics_RecordItemsHarvested(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_worker_items_harvested_total",
		Help: "test counter",
	})

	metrics := &WorkerMetrics{ItemsHarvestedTotal: counter}

	metrics.RecordItemsHarvested(17)
	metrics.RecordItemsHarvested(5)

	if got := testutil.ToFloat64(counter); got != 22 {
		t.Errorf("expected 22 items, got %v", got)
	}
}

func TestWorkerMetrics_RecordRunDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_worker_digest_run_duration_seconds",
		Help:    "test histogram",
		Buckets: []float64{5, 30, 60},
	})

	metrics := &WorkerMetrics{DigestRunDurationSeconds: histogram}

	metrics.RecordRunDuration(12.5)
	metrics.RecordRunDuration(42.0)

	if got := testutil.CollectAndCount(histogram); got != 1 {
		t.Errorf("expected 1 metric family, got %d", got)
	}
}

func TestWorkerMetrics_RecordLastSuccess(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_worker_last_success_timestamp",
		Help: "test gauge",
	})

	metrics := &WorkerMetrics{LastSuccessTimestamp: gauge}

	metrics.RecordLastSuccess()

	if got := testutil.ToFloat64(gauge); got <= 0 {
		t.Errorf("expected a positive Unix timestamp, got %v", got)
	}
}
