// Package slo tracks whether scheduled digest delivery is meeting its
// service level objectives. The worker records every run outcome; the
// gauges are recomputed over a sliding window of recent runs so a single
// bad morning shows up without being drowned out by history.
package slo

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the digest pipeline.
const (
	// DeliverySuccessSLO is the target ratio of scheduled runs that
	// complete and deliver (99% allows roughly three misses a year on a
	// daily schedule).
	DeliverySuccessSLO = 0.99

	// RunDurationP95SLO is the target p95 run duration in seconds. A run
	// past 30 minutes usually means a stuck source or a saturated model
	// provider.
	RunDurationP95SLO = 1800.0

	// defaultWindow is how many recent runs the sliding window keeps.
	defaultWindow = 30
)

var (
	sloDeliverySuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_digest_success_ratio",
			Help: "Ratio of recent scheduled runs that completed (0-1), target: 0.99",
		},
	)

	sloRunDurationP95 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_digest_run_duration_p95_seconds",
			Help: "p95 duration of recent runs in seconds, target: 1800",
		},
	)

	sloLastSuccessAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_digest_last_success_age_seconds",
			Help: "Seconds since the last completed run",
		},
	)
)

type runSample struct {
	success  bool
	duration float64
}

// Tracker keeps a sliding window of run outcomes and republishes the SLO
// gauges after every record. Safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	window      int
	samples     []runSample
	lastSuccess time.Time
	now         func() time.Time
}

// NewTracker returns a tracker over the given number of recent runs.
// window <= 0 falls back to the default.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = defaultWindow
	}
	return &Tracker{window: window, now: time.Now}
}

// Default is the tracker the worker records into.
var Default = NewTracker(defaultWindow)

// Record adds one run outcome and updates the gauges.
func (t *Tracker) Record(success bool, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples = append(t.samples, runSample{success: success, duration: duration.Seconds()})
	if len(t.samples) > t.window {
		t.samples = t.samples[len(t.samples)-t.window:]
	}
	if success {
		t.lastSuccess = t.now()
	}

	sloDeliverySuccess.Set(t.successRatioLocked())
	sloRunDurationP95.Set(t.durationP95Locked())
	if !t.lastSuccess.IsZero() {
		sloLastSuccessAge.Set(t.now().Sub(t.lastSuccess).Seconds())
	}
}

// SuccessRatio returns the windowed completion ratio, 1.0 when empty.
func (t *Tracker) SuccessRatio() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.successRatioLocked()
}

// DurationP95 returns the windowed p95 run duration in seconds.
func (t *Tracker) DurationP95() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.durationP95Locked()
}

func (t *Tracker) successRatioLocked() float64 {
	if len(t.samples) == 0 {
		return 1.0
	}
	ok := 0
	for _, s := range t.samples {
		if s.success {
			ok++
		}
	}
	return float64(ok) / float64(len(t.samples))
}

func (t *Tracker) durationP95Locked() float64 {
	if len(t.samples) == 0 {
		return 0
	}
	durations := make([]float64, len(t.samples))
	for i, s := range t.samples {
		durations[i] = s.duration
	}
	sort.Float64s(durations)

	// nearest-rank 法。サンプルが少ないうちは最大値に寄る。
	rank := int(float64(len(durations))*0.95+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(durations) {
		rank = len(durations) - 1
	}
	return durations[rank]
}
