package middleware

import (
	"net/http"
	"strings"

	"pulse-digest/pkg/security/csp"
)

// CSPConfig selects a Content-Security-Policy per path prefix. The longest
// matching prefix wins; DefaultPolicy covers everything else.
type CSPConfig struct {
	Enabled       bool
	DefaultPolicy *csp.Policy
	PathPolicies  map[string]*csp.Policy
}

// DefaultCSPConfig locks down the JSON surface and carves out the Swagger
// UI, which needs inline scripts and styles.
func DefaultCSPConfig() CSPConfig {
	return CSPConfig{
		Enabled:       true,
		DefaultPolicy: csp.APIPolicy(),
		PathPolicies: map[string]*csp.Policy{
			"/swagger/": csp.SwaggerUIPolicy(),
		},
	}
}

// CSP returns a middleware that stamps the selected policy on every
// response.
func CSP(cfg CSPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			policy := selectCSPPolicy(cfg, r.URL.Path)
			if policy == nil {
				next.ServeHTTP(w, r)
				return
			}
			if value := policy.Build(); value != "" {
				w.Header().Set(policy.HeaderName(), value)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func selectCSPPolicy(cfg CSPConfig, path string) *csp.Policy {
	longest := ""
	var matched *csp.Policy
	for prefix, policy := range cfg.PathPolicies {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(longest) {
			longest = prefix
			matched = policy
		}
	}
	if matched != nil {
		return matched
	}
	return cfg.DefaultPolicy
}
