// Package observability provides structured logging helpers scoped to a
// pipeline run. Context carries the run identifier, the active stage and the
// source file so every log line can be correlated without threading loggers
// through call signatures.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// LogContext holds structured logging context information.
type LogContext struct {
	RunID  string
	Stage  string
	Source string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithRunID adds a pipeline run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	lc := extractLogContext(ctx)
	lc.RunID = runID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage adds a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

// WithSource adds the source document filename to the context.
func WithSource(ctx context.Context, source string) context.Context {
	lc := extractLogContext(ctx)
	lc.Source = source
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := []slog.Attr{}

	if lc.RunID != "" {
		attrs = append(attrs, slog.String("run.id", lc.RunID))
	}
	if lc.Stage != "" {
		attrs = append(attrs, slog.String("stage", lc.Stage))
	}
	if lc.Source != "" {
		attrs = append(attrs, slog.String("file", lc.Source))
	}

	return attrs
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelInfo, msg, allAttrs...)
}

// WarnContext logs a warning message with context information.
func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelWarn, msg, allAttrs...)
}

// ErrorContext logs an error message with context information.
func ErrorContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelError, msg, allAttrs...)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	contextAttrs := getLogAttrs(ctx)
	allAttrs := append(contextAttrs, attrs...)
	slog.LogAttrs(ctx, slog.LevelDebug, msg, allAttrs...)
}

// Setup installs the process-wide slog default handler.
//
// format selects between "text" and "json" output; level is one of
// debug|info|warn|error (anything else falls back to info).
func Setup(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
