// Package responsewriter wraps http.ResponseWriter so middleware can
// observe the status code and body size after the handler ran.
package responsewriter

import "net/http"

// ResponseWriter records what the wrapped writer was told.
type ResponseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int
	wroteHeader  bool
}

// Wrap returns a recording writer. The status defaults to 200, matching
// net/http's implicit header write.
func Wrap(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader records the first status code; repeated calls are dropped
// the same way net/http drops them.
func (w *ResponseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

// StatusCode returns the status sent to the client.
func (w *ResponseWriter) StatusCode() int { return w.status }

// BytesWritten returns the body size in bytes.
func (w *ResponseWriter) BytesWritten() int { return w.bytesWritten }

// Unwrap exposes the underlying writer for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
