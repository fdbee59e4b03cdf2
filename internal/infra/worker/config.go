// Package worker holds the runtime plumbing of the scheduled pipeline
// worker: its configuration, Prometheus metrics, and the health server
// orchestrators probe.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"pulse-digest/internal/pkg/config"
)

// WorkerConfig controls the scheduled worker: when digest runs fire,
// how long one run may take, and where the probe servers listen.
//
// Loading is fail-open: an invalid environment value falls back to the
// default with a warning and a metric, so a typo in CRON_SCHEDULE
// degrades to the default schedule instead of taking the worker down.
type WorkerConfig struct {
	// CronSchedule is the five-field cron expression for digest runs.
	// Default: "30 6 * * *" (daily, before the workday starts).
	CronSchedule string

	// Timezone is the IANA zone the schedule is evaluated in.
	Timezone string

	// RunTimeout bounds one scheduled pipeline run end to end. A run
	// that exceeds it is cancelled and recorded as failed.
	RunTimeout time.Duration

	// HealthAddr is the listen address of the /healthz /readyz server.
	HealthAddr string

	// MetricsAddr is the listen address of the Prometheus endpoint.
	MetricsAddr string

	// GRPCHealthAddr enables the gRPC health service when non-empty.
	// Deployments probing over gRPC set this; everyone else leaves it
	// empty and the service is not started.
	GRPCHealthAddr string
}

// DefaultConfig returns production defaults: a daily morning run with a
// one-hour ceiling and the conventional sidecar ports.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule:   "30 6 * * *",
		Timezone:       "UTC",
		RunTimeout:     time.Hour,
		HealthAddr:     ":9091",
		MetricsAddr:    ":9092",
		GRPCHealthAddr: "",
	}
}

// Validate reports every invalid field at once.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.RunTimeout); err != nil {
		errs = append(errs, fmt.Errorf("run timeout: %w", err))
	}
	if c.HealthAddr == "" {
		errs = append(errs, fmt.Errorf("health addr: must not be empty"))
	}
	if c.MetricsAddr == "" {
		errs = append(errs, fmt.Errorf("metrics addr: must not be empty"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv reads the worker configuration from the environment,
// falling back per field on invalid values.
//
// Environment variables:
//   - CRON_SCHEDULE: five-field cron expression
//   - WORKER_TIMEZONE: IANA timezone name
//   - RUN_TIMEOUT: duration string, clamped to 1m..4h
//   - HEALTH_ADDR, METRICS_ADDR, GRPC_HEALTH_ADDR: listen addresses
//
// The returned config is always valid; the error is always nil and kept
// only for call-site symmetry with the fail-closed loaders.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	logFallback := func(field string, warnings []string) {
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.LoadEnvWithFallback("CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	if result.FallbackApplied {
		logFallback("cron_schedule", result.Warnings)
	}

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	if result.FallbackApplied {
		logFallback("timezone", result.Warnings)
	}

	// 1 分未満のランは無意味、4 時間超は暴走とみなす
	result = config.LoadEnvDuration("RUN_TIMEOUT", cfg.RunTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Minute, 4*time.Hour)
	})
	cfg.RunTimeout = result.Value.(time.Duration)
	if result.FallbackApplied {
		logFallback("run_timeout", result.Warnings)
	}

	cfg.HealthAddr = config.LoadEnvString("HEALTH_ADDR", cfg.HealthAddr)
	cfg.MetricsAddr = config.LoadEnvString("METRICS_ADDR", cfg.MetricsAddr)
	cfg.GRPCHealthAddr = config.LoadEnvString("GRPC_HEALTH_ADDR", cfg.GRPCHealthAddr)

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
