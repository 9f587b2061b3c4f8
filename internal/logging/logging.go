package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel accepts "debug", "info", "warn", "error" (case-insensitive).
// Unrecognized values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds a handler for format: "text" (default), "pretty" for
// colored terminal output, or "json".
func NewHandler(w io.Writer, level, format string) slog.Handler {
	lvl := ParseLevel(level)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "pretty":
		return tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	}
}

// Setup creates a configured *slog.Logger writing to stderr, sets it as the
// default, and returns it.
func Setup(level, format string) *slog.Logger {
	logger := slog.New(NewHandler(os.Stderr, level, format))
	slog.SetDefault(logger)
	return logger
}
