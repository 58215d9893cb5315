package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Component: ComponentBudget, Format: "json", Output: buf})
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, slog.LevelInfo)
	l.Info("hello", FieldAccountID, "acc1")

	m := decode(t, &buf)
	assert.Equal(t, "hello", m["msg"])
	assert.Equal(t, ComponentBudget, m[FieldComponent])
	assert.Equal(t, "acc1", m[FieldAccountID])

	buf.Reset()
	l.WithComponent(ComponentHTTP).With(FieldRequestID, "r1").Warn("warned")
	m = decode(t, &buf)
	assert.Equal(t, ComponentHTTP, m[FieldComponent])
	assert.Equal(t, "r1", m[FieldRequestID])
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, slog.LevelWarn)
	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Error("shown")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestMiddlewareContext(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, slog.LevelInfo)

	var got *Logger
	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "req-9" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.InfoContext(r.Context(), "inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.Equal(t, "req-9", decode(t, &buf)[FieldRequestID])
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, slog.LevelInfo))

	sl.LogError(context.Background(), "boom", errors.New("bad"), OpFetch, nil)
	m := decode(t, &buf)
	assert.Equal(t, "bad", m[FieldError])
	assert.Equal(t, OpFetch, m[FieldOperation])

	buf.Reset()
	r := httptest.NewRequest(http.MethodGet, "/api/budget-matrix?months=3", nil)
	sl.LogHTTPEnd(context.Background(), r, http.StatusInternalServerError, 12, "1.2.3.4")
	m = decode(t, &buf)
	assert.Equal(t, "ERROR", m["level"])
	assert.Equal(t, false, m[FieldSuccess])
	assert.Equal(t, ComponentBudget, m[FieldComponent])
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().WithWindow("2025-01", "2025-06", "eur", 6).WithCell("acc", "2025-06", 12.5)
	assert.Equal(t, 6, f[FieldWindowMonths])
	assert.Len(t, f.ToSlice(), 2*len(f))
	assert.NotContains(t, NewFields().WithWindow("a", "b", "", 0), FieldWindowMonths)
}
