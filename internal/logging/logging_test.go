package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", File(ctx))
	assert.Equal(t, "", Function(ctx))

	ctx = WithFile(ctx, "main.bal")
	ctx = WithFunction(ctx, "handle")
	assert.Equal(t, "main.bal", File(ctx))
	assert.Equal(t, "handle", Function(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithFile(context.Background(), "svc.bal")
	LogWith(ctx, logger).Info("lowered")

	out := buf.String()
	assert.Contains(t, out, "file=svc.bal")
	assert.NotContains(t, out, "function=")
	assert.Contains(t, out, "lowered")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelDebug, &buf)

	ctx := WithFunction(WithFile(context.Background(), "a.bal"), "main")
	logger.DebugContext(ctx, "classified call", "rule", "remote")

	out := buf.String()
	assert.Contains(t, out, "file=a.bal")
	assert.Contains(t, out, "function=main")
	assert.Contains(t, out, "rule=remote")
}

func TestCorrelationHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelWarn, &buf)
	logger.InfoContext(WithFile(context.Background(), "a.bal"), "hidden")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
