// Package logging builds the gate's slog logger and carries a per-request
// logger through context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type ctxKey struct{}

type requestScope struct {
	id     string
	logger *slog.Logger
}

// New creates a structured logger writing to stdout.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination. format "json" selects
// the JSON handler; anything else is text.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl, AddSource: lvl <= slog.LevelDebug}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel accepts slog level names in any case ("debug", "WARN", "error+2").
// Unknown input is info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ForRequest returns ctx carrying base annotated with requestID. A nil base
// uses slog.Default().
func ForRequest(ctx context.Context, base *slog.Logger, requestID string) context.Context {
	if base == nil {
		base = slog.Default()
	}
	logger := base
	if requestID != "" {
		logger = base.With("request_id", requestID)
	}
	return context.WithValue(ctx, ctxKey{}, requestScope{id: requestID, logger: logger})
}

// RequestID returns the request ID installed by ForRequest, if any.
func RequestID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKey{}).(requestScope); ok {
		return s.id
	}
	return ""
}

// L returns the request logger, or slog.Default() outside a request.
func L(ctx context.Context) *slog.Logger {
	if s, ok := ctx.Value(ctxKey{}).(requestScope); ok {
		return s.logger
	}
	return slog.Default()
}
