package ratelimit

import "time"

// NoOpMetrics discards all telemetry. Used in tests and when the
// limiter runs without a metrics backend.
type NoOpMetrics struct{}

// NewNoOpMetrics returns a metrics sink that does nothing.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (m *NoOpMetrics) RecordAllowed(limiterType, endpoint string) {}

func (m *NoOpMetrics) RecordDenied(limiterType, endpoint string) {}

func (m *NoOpMetrics) RecordCheckDuration(limiterType string, d time.Duration) {}

func (m *NoOpMetrics) SetActiveKeys(limiterType string, count int) {}

func (m *NoOpMetrics) RecordEviction(limiterType string, count int) {}
