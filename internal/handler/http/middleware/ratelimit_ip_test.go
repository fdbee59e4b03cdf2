package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-digest/pkg/ratelimit"
)

func newTestIPRateLimiter(cfg IPRateLimiterConfig) *IPRateLimiter {
	store := ratelimit.NewInMemoryRateLimitStore(ratelimit.InMemoryStoreConfig{MaxKeys: 100})
	algorithm := ratelimit.NewSlidingWindowAlgorithm(&ratelimit.SystemClock{})
	return NewIPRateLimiter(cfg, &RemoteAddrExtractor{}, store, algorithm, ratelimit.NewNoOpMetrics(), nil)
}

func rateLimitedHandler(rl *IPRateLimiter) http.Handler {
	return rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
}

func TestIPRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := newTestIPRateLimiter(IPRateLimiterConfig{Limit: 5, Window: time.Minute, Enabled: true})
	h := rateLimitedHandler(rl)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "ip", rec.Header().Get("X-RateLimit-Type"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	}
}

func TestIPRateLimiter_DeniesOverLimit(t *testing.T) {
	rl := newTestIPRateLimiter(IPRateLimiterConfig{Limit: 2, Window: time.Minute, Enabled: true})
	h := rateLimitedHandler(rl)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		req.RemoteAddr = "192.0.2.2:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.RemoteAddr = "192.0.2.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestIPRateLimiter_KeysPerIP(t *testing.T) {
	rl := newTestIPRateLimiter(IPRateLimiterConfig{Limit: 1, Window: time.Minute, Enabled: true})
	h := rateLimitedHandler(rl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.RemoteAddr = "192.0.2.3:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// 別 IP は別のバケット
	req = httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.RemoteAddr = "192.0.2.4:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPRateLimiter_DisabledPassesThrough(t *testing.T) {
	rl := newTestIPRateLimiter(IPRateLimiterConfig{Limit: 1, Window: time.Minute, Enabled: false})
	h := rateLimitedHandler(rl)

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		req.RemoteAddr = "192.0.2.5:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestIPRateLimiter_FailsOpenOnExtractorError(t *testing.T) {
	rl := newTestIPRateLimiter(IPRateLimiterConfig{Limit: 1, Window: time.Minute, Enabled: true})
	h := rateLimitedHandler(rl)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.RemoteAddr = "not-an-address"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestDefaultIPRateLimiterConfig(t *testing.T) {
	cfg := DefaultIPRateLimiterConfig()
	assert.Equal(t, 100, cfg.Limit)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.True(t, cfg.Enabled)
}
