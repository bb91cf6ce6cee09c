package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"few-shots/internal/embeddings"
	"few-shots/internal/fewshots"
	"few-shots/internal/shot"
	"few-shots/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", shot.ErrInvalidInputKind), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", fewshots.ErrInvalidArguments), http.StatusBadRequest},
		{store.ErrLengthMismatch, http.StatusBadRequest},
		{fmt.Errorf("list: %w", store.ErrSchema), http.StatusUnprocessableEntity},
		{store.Unavailable("search", errors.New("refused")), http.StatusServiceUnavailable},
		{embeddings.Unavailable("openai embeddings", errors.New("refused")), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, StatusFor(tt.err), "err: %v", tt.err)
	}
}

func TestFailWritesJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	Fail(discard, rec, "search failed", errors.New("boom"), 0)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "search failed", body["error"])
}

func TestFailErrIncludesClientErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	FailErr(discard, rec, "add failed", fmt.Errorf("%w: bad shape", fewshots.ErrInvalidArguments))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad shape")

	rec = httptest.NewRecorder()
	FailErr(discard, rec, "add failed", errors.New("password=secret"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

type testRequest struct {
	Name  string `json:"name" validate:"required"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=10"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		ok     bool
		status int
	}{
		{"valid", `{"name":"x","limit":3}`, true, http.StatusOK},
		{"malformed", `{`, false, http.StatusBadRequest},
		{"missing required", `{"limit":3}`, false, http.StatusBadRequest},
		{"limit too large", `{"name":"x","limit":11}`, false, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var v testRequest
			assert.Equal(t, tt.ok, DecodeJSON(discard, rec, req, &v))
			if !tt.ok {
				assert.Equal(t, tt.status, rec.Code)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	r := NewRouter(discard)
	r.Get("/healthz", HealthHandler(discard))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRecoverer(t *testing.T) {
	r := NewRouter(discard)
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
