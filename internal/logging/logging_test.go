package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New("nonsense", "development")
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.InfoLevel))
	require.False(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New("debug", "production")
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestFromContextWithoutLogger(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))
}

func TestMiddlewareLogsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	var inner *zap.Logger
	h := middleware.RequestID(Middleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.NotNil(t, inner)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "HTTP request completed", entry.Message)
	fields := entry.ContextMap()
	require.Equal(t, int64(http.StatusTeapot), fields["status"])
	require.Equal(t, "/api/ping", fields["path"])
	require.NotEmpty(t, fields["request_id"])
}

func TestMiddlewareLogsServerErrorsAsError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Middleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, 1, logs.FilterMessage("HTTP request failed").Len())
}
