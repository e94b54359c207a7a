// Package logging provides structured logging configuration using log/slog.
//
// Loggers taken from a context carry the chi request id and, inside an
// import run, the upload id and file name, so every entry of one preview or
// commit can be correlated.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey struct{}

type uploadFields struct {
	uploadID string
	fileName string
}

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	slog.SetDefault(New(os.Stdout, level, format))
}

// New builds a logger writing to w. Setup uses it for stdout; the CLI uses
// it for stderr so report output stays clean.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithUpload marks ctx as belonging to one import run.
func WithUpload(ctx context.Context, uploadID, fileName string) context.Context {
	return context.WithValue(ctx, ctxKey{}, uploadFields{uploadID: uploadID, fileName: fileName})
}

// FromContext returns a logger enriched with request and upload context.
//
// Usage:
//
//	logger := logging.FromContext(r.Context())
//	logger.Info("preview finished", "results", len(report.Results))
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if up, ok := ctx.Value(ctxKey{}).(uploadFields); ok {
		logger = logger.With("upload_id", up.uploadID, "file", up.fileName)
	}

	return logger
}

// WithFields returns a logger with additional structured fields.
//
//	meetLogger := logging.WithFields(ctx, "meet", batch.Meet.Name)
//	meetLogger.Info("meet committed", "inserted", res.Inserted)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
