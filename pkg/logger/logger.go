package logger

import (
	"log/slog"
	"os"
)

// Setup builds the process-wide logger: a text handler on stdout at
// debug level, threaded through constructors rather than held in a
// global.
func Setup() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}
