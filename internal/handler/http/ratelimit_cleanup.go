package http

import (
	"context"
	"log/slog"
	"time"

	"pulse-digest/pkg/config"
	"pulse-digest/pkg/ratelimit"
)

// StartRateLimitCleanup runs a background loop that evicts stale entries
// from a rate limit store. Without it the store grows with every distinct
// client IP seen. Stops when ctx is cancelled.
func StartRateLimitCleanup(
	ctx context.Context,
	store *ratelimit.InMemoryRateLimitStore,
	interval time.Duration,
	windowDuration time.Duration,
	limiterType string,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("rate limit cleanup started",
		slog.String("limiter_type", limiterType),
		slog.Duration("interval", interval),
		slog.Duration("window_duration", windowDuration))

	for {
		select {
		case <-ctx.Done():
			slog.Info("rate limit cleanup stopped",
				slog.String("limiter_type", limiterType))
			return

		case <-ticker.C:
			// 時間窓の2倍より古いものだけを消す。クロックずれと実行中の
			// リクエストへの安全マージン。
			cutoff := time.Now().Add(-2 * windowDuration)

			keysBefore, err := store.KeyCount(ctx)
			if err != nil {
				slog.Error("failed to get key count before cleanup",
					slog.String("limiter_type", limiterType),
					slog.Any("error", err))
				continue
			}

			if err := store.Cleanup(ctx, cutoff); err != nil {
				slog.Error("rate limit cleanup failed",
					slog.String("limiter_type", limiterType),
					slog.Any("error", err))
				continue
			}

			keysAfter, err := store.KeyCount(ctx)
			if err != nil {
				slog.Error("failed to get key count after cleanup",
					slog.String("limiter_type", limiterType),
					slog.Any("error", err))
				continue
			}

			slog.Debug("rate limit cleanup completed",
				slog.String("limiter_type", limiterType),
				slog.Int("keys_removed", keysBefore-keysAfter),
				slog.Int("active_keys", keysAfter),
				slog.Time("cutoff_time", cutoff))
		}
	}
}

// CleanupConfig holds the cleanup loop settings.
type CleanupConfig struct {
	Interval       time.Duration
	WindowDuration time.Duration
	LimiterType    string
}

// DefaultCleanupInterval is used when RATELIMIT_CLEANUP_INTERVAL is unset.
const DefaultCleanupInterval = 5 * time.Minute

// LoadCleanupConfigFromEnv reads RATELIMIT_CLEANUP_INTERVAL, falling back to
// the default on parse errors.
func LoadCleanupConfigFromEnv() CleanupConfig {
	return CleanupConfig{
		Interval: config.GetEnvDuration("RATELIMIT_CLEANUP_INTERVAL", DefaultCleanupInterval),
	}
}
