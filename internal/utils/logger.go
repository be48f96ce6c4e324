package utils

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger. Diagnostics go to stderr so
// stdout stays free for the interactive prompt and the target summary.
func NewLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	return slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
}
