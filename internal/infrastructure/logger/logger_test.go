package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNew_WritesJSONWithServiceFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(Config{Level: "debug", Format: "json", Output: path, Service: "storyvoice", Env: "test"})
	require.NoError(t, err)

	log.Info("hello", zap.String("voice", "luna"))
	Sync(log)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "storyvoice", entry["service"])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "luna", entry["voice"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_UnwritableOutput(t *testing.T) {
	_, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "app.log")})
	assert.Error(t, err)
}

func TestContextFields(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithAccountID(ctx, "acc-9")

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "acc-9", AccountID(ctx))
	assert.Empty(t, TraceID(ctx))

	core, recorded := observer.New(zapcore.DebugLevel)
	For(ctx, zap.New(core)).Info("reserved")

	entry := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "acc-9", entry["account_id"])
	assert.NotContains(t, entry, "trace_id")
}

func TestContextFields_WithSpan(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	assert.Equal(t, traceID.String(), TraceID(ctx))

	core, recorded := observer.New(zapcore.DebugLevel)
	L(WithContext(ctx, zap.New(core))).Warn("provider skipped")

	entry := recorded.All()[0].ContextMap()
	assert.Equal(t, traceID.String(), entry["trace_id"])
	assert.Equal(t, spanID.String(), entry["span_id"])
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	log.Info("discarded")
	assert.NotNil(t, For(context.Background(), nil))
}
