package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"pulse-digest/internal/resilience/circuitbreaker"
	"pulse-digest/pkg/ratelimit"
)

// IPRateLimiterConfig configures the per-IP limiter.
type IPRateLimiterConfig struct {
	Limit   int           // requests per window, default 100
	Window  time.Duration // default 1 minute
	Enabled bool
}

// DefaultIPRateLimiterConfig returns 100 requests per minute, enabled.
func DefaultIPRateLimiterConfig() IPRateLimiterConfig {
	return IPRateLimiterConfig{
		Limit:   100,
		Window:  1 * time.Minute,
		Enabled: true,
	}
}

// IPRateLimiter is the HTTP adapter over pkg/ratelimit: it extracts the
// client IP, asks the algorithm for a decision, sets X-RateLimit-* headers
// and answers 429 on denial. Every failure path fails open — a broken
// limiter must never take the API down with it.
type IPRateLimiter struct {
	config         IPRateLimiterConfig
	ipExtractor    IPExtractor
	store          ratelimit.RateLimitStore
	algorithm      ratelimit.RateLimitAlgorithm
	metrics        ratelimit.RateLimitMetrics
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewIPRateLimiter assembles a limiter from its parts. metrics and
// circuitBreaker may be nil.
func NewIPRateLimiter(
	config IPRateLimiterConfig,
	ipExtractor IPExtractor,
	store ratelimit.RateLimitStore,
	algorithm ratelimit.RateLimitAlgorithm,
	metrics ratelimit.RateLimitMetrics,
	circuitBreaker *circuitbreaker.CircuitBreaker,
) *IPRateLimiter {
	if config.Limit <= 0 {
		config.Limit = 100
	}
	if config.Window <= 0 {
		config.Window = 1 * time.Minute
	}

	return &IPRateLimiter{
		config:         config,
		ipExtractor:    ipExtractor,
		store:          store,
		algorithm:      algorithm,
		metrics:        metrics,
		circuitBreaker: circuitBreaker,
	}
}

// Middleware returns the enforcing middleware.
//
// Response headers on every limited route:
//   - X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset,
//     X-RateLimit-Type: "ip"
//   - Retry-After (only on 429)
func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			ip, err := rl.ipExtractor.ExtractIP(r)
			if err != nil {
				slog.Error("IP rate limiter: failed to extract IP, allowing request",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			// ブレーカー開放時は可用性優先で素通し
			if rl.circuitBreaker != nil && rl.circuitBreaker.IsOpen() {
				slog.Warn("IP rate limiter: circuit breaker open, allowing request",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			decision, err := rl.checkRateLimit(r.Context(), ip)
			if rl.metrics != nil {
				rl.metrics.RecordCheckDuration("ip", time.Since(start))
			}
			if err != nil {
				slog.Error("IP rate limiter: check failed, allowing request (fail-open)",
					slog.String("error", err.Error()),
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			slog.Debug("rate limit check completed",
				slog.String("limiter_type", "ip"),
				slog.String("key", ip),
				slog.Int("limit", decision.Limit),
				slog.Int("remaining", decision.Remaining),
				slog.Bool("allowed", decision.Allowed),
				slog.String("path", r.URL.Path),
			)

			rl.setRateLimitHeaders(w, decision)

			if decision.IsDenied() {
				rl.writeRateLimitError(w, r, decision)
				return
			}

			if rl.metrics != nil {
				rl.metrics.RecordAllowed("ip", r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkRateLimit runs the algorithm, routing through the circuit breaker
// when one is configured so repeated store failures open it.
func (rl *IPRateLimiter) checkRateLimit(ctx context.Context, ip string) (*ratelimit.RateLimitDecision, error) {
	run := func() (*ratelimit.RateLimitDecision, error) {
		return rl.algorithm.IsAllowed(ctx, ip, rl.store, rl.config.Limit, rl.config.Window)
	}

	var decision *ratelimit.RateLimitDecision
	var err error
	if rl.circuitBreaker != nil {
		var result interface{}
		result, err = rl.circuitBreaker.Execute(func() (interface{}, error) {
			return run()
		})
		if err == nil {
			decision = result.(*ratelimit.RateLimitDecision)
		}
	} else {
		decision, err = run()
	}
	if err != nil {
		return nil, err
	}

	decision.LimiterType = "ip"
	return decision, nil
}

func (rl *IPRateLimiter) setRateLimitHeaders(w http.ResponseWriter, decision *ratelimit.RateLimitDecision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAtUnix(), 10))
	w.Header().Set("X-RateLimit-Type", "ip")
}

func (rl *IPRateLimiter) writeRateLimitError(w http.ResponseWriter, r *http.Request, decision *ratelimit.RateLimitDecision) {
	retryAfter := decision.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"error":       "rate_limit_exceeded",
		"message":     "Too many requests from this IP address",
		"retry_after": retryAfter,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("IP rate limiter: failed to encode JSON response",
			slog.String("error", err.Error()),
		)
	}

	if rl.metrics != nil {
		rl.metrics.RecordDenied("ip", r.URL.Path)
	}

	slog.Warn("rate limit exceeded",
		slog.String("limiter_type", "ip"),
		slog.String("key", decision.Key),
		slog.Int("limit", decision.Limit),
		slog.Int64("retry_after", retryAfter),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
	)
}
