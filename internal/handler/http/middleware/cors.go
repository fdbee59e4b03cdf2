package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// CORSConfig holds the CORS policy for the API.
type CORSConfig struct {
	// AllowedOrigins is the origin whitelist. Matching is exact and
	// case-insensitive.
	AllowedOrigins []string

	// AllowedMethods and AllowedHeaders are echoed on preflight responses.
	AllowedMethods []string
	AllowedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int

	Logger *slog.Logger
}

var defaultCORSMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
var defaultCORSHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}

// LoadCORSConfig reads the CORS policy from the environment.
//
//   - CORS_ALLOWED_ORIGINS: required, comma-separated origins. Each must be
//     a bare http(s) origin with no path, query, fragment, or trailing
//     slash. Fail-closed: a missing or malformed value is a startup error.
//   - CORS_ALLOWED_METHODS, CORS_ALLOWED_HEADERS: optional overrides.
//   - CORS_MAX_AGE: optional, seconds, default 86400.
func LoadCORSConfig() (*CORSConfig, error) {
	originsStr := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if originsStr == "" {
		return nil, fmt.Errorf("CORS_ALLOWED_ORIGINS environment variable is required")
	}

	origins := make([]string, 0, 4)
	for _, originStr := range strings.Split(originsStr, ",") {
		originStr = strings.TrimSpace(originStr)
		if originStr == "" {
			continue
		}
		u, err := url.Parse(originStr)
		if err != nil {
			return nil, fmt.Errorf("invalid origin URL %q: %w", originStr, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("origin must use http or https scheme: %s", originStr)
		}
		if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" ||
			strings.HasSuffix(originStr, "/") {
			return nil, fmt.Errorf("origin must be scheme://host[:port] with nothing after it: %s", originStr)
		}
		origins = append(origins, originStr)
	}
	if len(origins) == 0 {
		return nil, fmt.Errorf("at least one valid origin must be configured in CORS_ALLOWED_ORIGINS")
	}

	cfg := &CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: defaultCORSMethods,
		AllowedHeaders: defaultCORSHeaders,
		MaxAge:         86400,
	}

	if methodsStr := strings.TrimSpace(os.Getenv("CORS_ALLOWED_METHODS")); methodsStr != "" {
		cfg.AllowedMethods = splitAndTrim(methodsStr)
	}
	if headersStr := strings.TrimSpace(os.Getenv("CORS_ALLOWED_HEADERS")); headersStr != "" {
		cfg.AllowedHeaders = splitAndTrim(headersStr)
	}
	if maxAgeStr := strings.TrimSpace(os.Getenv("CORS_MAX_AGE")); maxAgeStr != "" {
		maxAge, err := strconv.Atoi(maxAgeStr)
		if err != nil || maxAge < 0 {
			return nil, fmt.Errorf("CORS_MAX_AGE must be a non-negative integer: %s", maxAgeStr)
		}
		cfg.MaxAge = maxAge
	}

	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *CORSConfig) originAllowed(origin string) bool {
	for _, allowed := range c.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// CORS returns middleware enforcing the configured policy. Same-origin
// requests (no Origin header) pass through untouched. Disallowed origins
// get no CORS headers, which makes the browser block the response.
// Preflight OPTIONS requests are answered with 204 without reaching the
// next handler.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !config.originAllowed(origin) {
				logger.Warn("CORS: origin not allowed",
					slog.String("origin", origin),
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method),
					slog.String("remote_addr", r.RemoteAddr),
				)
				next.ServeHTTP(w, r)
				return
			}

			// Bearer 認証を使うので credentials を許可し、origin はエコーバック
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
