package log

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLevelParsing(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
		{"  Debug  ", zerolog.DebugLevel},
	}

	for _, tt := range tests {
		logger := New(Config{Level: tt.level})
		if got := logger.GetLevel(); got != tt.want {
			t.Errorf("New(level=%q).GetLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestLSupportsChainedCalls(t *testing.T) {
	if L() != L() {
		t.Fatal("L() returned different loggers across calls")
	}
	// Chained level calls must work directly on the return value.
	L().Debug().Str("check", "chained").Msg("")
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	ctx := context.Background()
	if Ctx(ctx) != L() {
		t.Error("Ctx without a stored logger should return the global logger")
	}

	stored := New(Config{Level: "error"})
	ctx = WithLogger(ctx, stored)
	if got := Ctx(ctx).GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("Ctx returned logger with level %v, want %v", got, zerolog.ErrorLevel)
	}
}

func TestHTTPMiddlewareSetsRequestID(t *testing.T) {
	logger := New(Config{Level: "error"})
	mw := HTTPMiddleware(&logger)

	var sawHandler bool
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawHandler = true
		if Ctx(r.Context()) == nil {
			t.Error("request context carries no logger")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !sawHandler {
		t.Fatal("wrapped handler was never called")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}
