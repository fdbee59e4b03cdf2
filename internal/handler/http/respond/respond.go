// Package respond writes the API's JSON responses. Error responses are
// filtered so that internal detail (DSNs, provider errors, file paths)
// never reaches a client; full detail goes to the log instead.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// JSON writes v as a JSON body with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// ヘッダ送信済みなのでログに残すしかない
		slog.Default().Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// Error writes err.Error() verbatim. Use only for errors built for the
// client; anything that might wrap an internal failure goes through
// SafeError.
func Error(w http.ResponseWriter, code int, err error) {
	JSON(w, code, map[string]string{"error": err.Error()})
}

// safeFragments marks error messages that are fine to show a client.
// Validation wording from the entity layer matches these.
var safeFragments = []string{
	"required",
	"invalid",
	"not found",
	"already exists",
	"must be",
	"cannot be",
	"too long",
	"too short",
}

// SafeError returns validation-style errors to the client verbatim and
// collapses everything else to "internal server error". 5xx codes are
// always collapsed regardless of wording. The real error is logged with
// credentials masked.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	msg := err.Error()
	safe := false
	if code < 500 {
		lower := strings.ToLower(msg)
		for _, fragment := range safeFragments {
			if strings.Contains(lower, fragment) {
				safe = true
				break
			}
		}
	}

	if safe {
		JSON(w, code, map[string]string{"error": msg})
		return
	}

	slog.Default().Error("internal server error",
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.String("error", SanitizeError(err)))
	JSON(w, code, map[string]string{"error": "internal server error"})
}
