package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validationHandler() http.Handler {
	return InputValidation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func TestInputValidation_Success(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(`{"top_n":5}`))
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	validationHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInputValidation_AuthorizationHeaderTooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries", nil)
	req.Header.Set("Authorization", "Bearer "+strings.Repeat("x", maxAuthHeaderBytes))
	rec := httptest.NewRecorder()
	validationHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "authorization header too large")
}

func TestInputValidation_AuthorizationHeaderAtLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries", nil)
	req.Header.Set("Authorization", strings.Repeat("x", maxAuthHeaderBytes))
	rec := httptest.NewRecorder()
	validationHandler().ServeHTTP(rec, req)

	// ちょうど上限は許可
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInputValidation_PathTooLong(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/"+strings.Repeat("a", maxPathBytes), nil)
	rec := httptest.NewRecorder()
	validationHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestURITooLong, rec.Code)
	assert.Contains(t, rec.Body.String(), "URI too long")
}

func TestInputValidation_BodySizeLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs",
		strings.NewReader(strings.Repeat("x", maxBodyBytes+1)))
	rec := httptest.NewRecorder()
	validationHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestInputValidation_NoAuthorizationHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	validationHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
