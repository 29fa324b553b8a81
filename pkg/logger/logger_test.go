package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithTraceIDAddsField(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithTraceID(context.Background(), "trace-123")
	WithTraceID(ctx, base).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "trace-123", entries[0].ContextMap()["trace_id"])
	assert.Equal(t, "trace-123", TraceIDFromContext(ctx))
}

func TestWithTraceIDWithoutID(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithTraceID(context.Background(), base))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "loud", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}
