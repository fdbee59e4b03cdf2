package llm

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CallMetricsRecorder records per-call provider metrics. Abstracted so tests
// can inject a mock and so both providers share one recorder.
type CallMetricsRecorder interface {
	// RecordDuration records the wall time of one successful API call.
	RecordDuration(duration time.Duration)

	// RecordReplyLength records the reply size in characters (runes).
	RecordReplyLength(chars int)

	// RecordError counts one failed call by error kind.
	RecordError(kind ErrorKind)
}

// PrometheusCallMetrics is the production CallMetricsRecorder.
type PrometheusCallMetrics struct {
	durationHistogram prometheus.Histogram
	replyHistogram    prometheus.Histogram
	errorCounter      *prometheus.CounterVec
}

var (
	callMetricsInstance *PrometheusCallMetrics
	callMetricsOnce     sync.Once
)

// getOrCreateHistogram returns the already-registered collector when both
// providers are constructed in one process.
func getOrCreateHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Histogram)
		}
		return promauto.NewHistogram(opts)
	}
	return h
}

func getOrCreateCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
		return promauto.NewCounterVec(opts, labels)
	}
	return c
}

// NewPrometheusCallMetrics returns the process-wide recorder. A singleton
// avoids duplicate registration when more than one provider is constructed.
func NewPrometheusCallMetrics() *PrometheusCallMetrics {
	callMetricsOnce.Do(func() {
		callMetricsInstance = &PrometheusCallMetrics{
			durationHistogram: getOrCreateHistogram(prometheus.HistogramOpts{
				Name:    "model_api_call_duration_seconds",
				Help:    "Wall time of one model API call",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			}),
			replyHistogram: getOrCreateHistogram(prometheus.HistogramOpts{
				Name:    "model_api_reply_length_chars",
				Help:    "Model reply length in characters (Unicode runes)",
				Buckets: []float64{50, 100, 200, 400, 800, 1600, 3200, 6400},
			}),
			errorCounter: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "model_api_errors_total",
				Help: "Model API call failures by error kind",
			}, []string{"kind"}),
		}
	})
	return callMetricsInstance
}

// RecordDuration implements CallMetricsRecorder.
func (p *PrometheusCallMetrics) RecordDuration(duration time.Duration) {
	p.durationHistogram.Observe(duration.Seconds())
}

// RecordReplyLength implements CallMetricsRecorder.
func (p *PrometheusCallMetrics) RecordReplyLength(chars int) {
	p.replyHistogram.Observe(float64(chars))
}

// RecordError implements CallMetricsRecorder.
func (p *PrometheusCallMetrics) RecordError(kind ErrorKind) {
	p.errorCounter.WithLabelValues(string(kind)).Inc()
}
