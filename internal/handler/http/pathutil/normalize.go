package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern pairs a compiled route pattern with its normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns lists the API's dynamic routes. Pre-compiled so normalization
// stays under a microsecond on the request hot path.
var pathPatterns = []*PathPattern{
	{Pattern: regexp.MustCompile(`^/api/v1/runs/\d+$`), Template: "/api/v1/runs/:id"},
}

// NormalizePath rewrites ID-carrying paths to their template form so the
// Prometheus path label stays bounded. Static paths pass through unchanged.
//
// Examples:
//
//	NormalizePath("/api/v1/runs/123")     // "/api/v1/runs/:id"
//	NormalizePath("/api/v1/runs/123?x=1") // "/api/v1/runs/:id"
//	NormalizePath("/api/v1/runs/123/")    // "/api/v1/runs/:id"
//	NormalizePath("/api/v1/search")       // "/api/v1/search" (unchanged)
//	NormalizePath("/health")              // "/health" (unchanged)
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}
	return path
}
