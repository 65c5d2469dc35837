package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/parley-ai/parley/pkg/logger"
)

func TestLoggingEmitsRequestEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request completed", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/v1/sessions", fields["path"])
	assert.EqualValues(t, http.StatusCreated, fields["status"])
	assert.NotEmpty(t, fields["correlation_id"])
	// The authenticated owner is not known at this layer.
	assert.NotContains(t, fields, "owner_id")
}

func TestLoggingPropagatesCorrelationID(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	var fromContext string
	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "corr-123", fromContext)
	assert.Equal(t, "corr-123", rec.Header().Get("X-Correlation-ID"))
}
