// Package logging builds the structured loggers shared by both
// binaries: JSON to stdout, tagged with the emitting service.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger returns a JSON slog logger for the service at the
// given level. Unknown level strings fall back to info.
func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerWithWriter(service, level, os.Stdout)
}

// NewJSONLoggerWithWriter is NewJSONLogger with an explicit sink,
// mainly for capturing output in tests.
func NewJSONLoggerWithWriter(service, level string, w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
