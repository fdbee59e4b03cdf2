package http

import (
	"net/http"
)

const (
	maxAuthHeaderBytes = 8192    // JWT は通常 1KB 未満。余裕を持たせる
	maxPathBytes       = 2048
	maxBodyBytes       = 10 << 20
)

// InputValidation returns middleware that rejects oversized request inputs
// before they reach a handler: the Authorization header, the URI path, and
// the body.
func InputValidation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(r.Header.Get("Authorization")) > maxAuthHeaderBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"authorization header too large"}`))
				return
			}

			if len(r.URL.Path) > maxPathBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestURITooLong)
				_, _ = w.Write([]byte(`{"error":"URI too long"}`))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			next.ServeHTTP(w, r)
		})
	}
}
