package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: component, Output: buf})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentDashboard)

	logger.Info("snapshot fetched", FieldExpenses, 3)
	out := buf.String()
	assert.Contains(t, out, "component=dashboard")
	assert.Contains(t, out, "expenses=3")

	buf.Reset()
	logger.WithComponent(ComponentSync).Warn("late")
	assert.Contains(t, buf.String(), "component=sync")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})
	logger.Info("hidden")
	logger.Error("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	assert.Equal(t, "unknown", logger.Component())

	var buf bytes.Buffer
	own := newBufferLogger(&buf, ComponentHTTP)
	assert.Same(t, own, FromContext(NewContext(context.Background(), own)))
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	handler := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, buf.String(), "request_id=req-42")
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentHTTP))
	r := httptest.NewRequest(http.MethodGet, "/api/summary?period=month", nil)

	sl.LogHTTPEnd(context.Background(), r, 502, 12, "127.0.0.1")
	line := buf.String()
	assert.True(t, strings.Contains(line, "level=ERROR"), line)
	assert.Contains(t, line, "status_code=502")
	assert.Contains(t, line, "success=false")

	buf.Reset()
	sl.LogError(context.Background(), "fetch failed", errors.New("boom"), OpFetch, nil)
	assert.Contains(t, buf.String(), "error=boom")
	assert.Contains(t, buf.String(), "operation=fetch")

	buf.Reset()
	sl.LogExpenseCreated(context.Background(), "abc", "Brot", 250, "")
	assert.Contains(t, buf.String(), "expense_id=abc")
	assert.NotContains(t, buf.String(), "category_ref")
}
