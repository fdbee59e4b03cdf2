package pathutil

import (
	"testing"
)

// BenchmarkNormalizePath exercises the mixed case the middleware sees.
func BenchmarkNormalizePath(b *testing.B) {
	paths := []string{
		"/api/v1/runs/123",
		"/api/v1/runs",
		"/api/v1/search",
		"/api/v1/summaries",
		"/health",
		"/metrics",
		"/auth/token",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizePath(paths[i%len(paths)])
	}
}

func BenchmarkNormalizePath_Match(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = NormalizePath("/api/v1/runs/123")
	}
}

func BenchmarkNormalizePath_NoMatch(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = NormalizePath("/health")
	}
}
