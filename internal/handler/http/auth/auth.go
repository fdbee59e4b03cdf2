// Package auth implements the single-operator authentication of the private
// API surface: an environment-backed credential check, JWT issuance, and the
// Authz middleware that guards mutating endpoints.
//
// The engine is operated by one person, so there is no user store. The
// operator's username and password come from API_USERNAME / API_PASSWORD and
// tokens are signed with JWT_SECRET. Setting AUTH_ENABLED=false (the default
// for local development) turns Authz into a pass-through.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Credentials carries a login attempt.
type Credentials struct {
	Username string
	Password string
}

// RoleAdmin is the only role the engine knows. Every issued token carries it.
const RoleAdmin = "admin"

const minPasswordLength = 12

// Enabled reports whether the Authz middleware enforces authentication.
// Anything other than an explicit "true" disables it.
func Enabled() bool {
	return os.Getenv("AUTH_ENABLED") == "true"
}

// ValidateCredentials checks a login attempt against API_USERNAME and
// API_PASSWORD using constant-time comparison.
func ValidateCredentials(_ context.Context, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return errors.New("credentials must not be empty")
	}
	if len(creds.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	wantUser := os.Getenv("API_USERNAME")
	wantPass := os.Getenv("API_PASSWORD")
	if wantUser == "" || wantPass == "" {
		return errors.New("operator credentials are not configured")
	}

	userMatch := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(wantUser)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(creds.Password), []byte(wantPass)) == 1
	if !userMatch || !passMatch {
		return errors.New("invalid credentials")
	}
	return nil
}

// PublicEndpoints lists the paths reachable without a token: orchestration
// health probes, the Prometheus scrape target, API docs, and the token
// endpoint itself.
var PublicEndpoints = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
	"/swagger/",
	"/auth/token",
}

// IsPublicEndpoint reports whether path needs no authentication.
//
// Entries ending with '/' match by prefix (/swagger/index.html). Entries
// without one require an exact match, so /health does not leak into
// /healthcheck:
//
//	IsPublicEndpoint("/health")          // true
//	IsPublicEndpoint("/healthcheck")     // false
//	IsPublicEndpoint("/swagger/doc.json") // true
//	IsPublicEndpoint("/api/v1/runs")     // false
func IsPublicEndpoint(path string) bool {
	for _, endpoint := range PublicEndpoints {
		if strings.HasSuffix(endpoint, "/") {
			if strings.HasPrefix(path, endpoint) {
				return true
			}
			continue
		}
		if path == endpoint || path == endpoint+"/" {
			return true
		}
		if strings.HasPrefix(path, endpoint+"?") {
			return true
		}
	}
	return false
}
