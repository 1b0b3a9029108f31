package commands

import (
	"io"
	"log/slog"
	"strings"
)

// parseLogLevel maps a level name to a slog level. Verbose forces debug.
func parseLogLevel(name string, verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
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

func newLogger(w io.Writer, level, format string, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level, verbose)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func setupLogging(w io.Writer, level, format string, verbose bool) {
	slog.SetDefault(newLogger(w, level, format, verbose))
}
