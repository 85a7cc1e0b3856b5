// Package logging builds the slog loggers used across the pipeline and
// carries per-file correlation values through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type ctxKey int

const (
	fileKey ctxKey = iota
	functionKey
)

// WithFile returns a context with the source file set.
func WithFile(ctx context.Context, file string) context.Context {
	return context.WithValue(ctx, fileKey, file)
}

// WithFunction returns a context with the function being lowered set.
func WithFunction(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, functionKey, name)
}

// File extracts the source file from the context, or "" if absent.
func File(ctx context.Context) string {
	v, _ := ctx.Value(fileKey).(string)
	return v
}

// Function extracts the function name from the context, or "" if absent.
func Function(ctx context.Context) string {
	v, _ := ctx.Value(functionKey).(string)
	return v
}

// LogWith returns a logger enriched with the correlation values in ctx.
// Only non-empty values are added.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if f := File(ctx); f != "" {
		logger = logger.With(slog.String("file", f))
	}
	if fn := Function(ctx); fn != "" {
		logger = logger.With(slog.String("function", fn))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler and injects the correlation
// values of the record's context.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps inner.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := File(ctx); v != "" {
		r.AddAttrs(slog.String("file", v))
	}
	if v := Function(ctx); v != "" {
		r.AddAttrs(slog.String("function", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}

// New returns a text logger writing to w at level, with correlation
// values injected.
func New(level slog.Level, w io.Writer) *slog.Logger {
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewCorrelationHandler(inner))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
