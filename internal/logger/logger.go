package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup returns a JSON structured logger writing to w.
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}

// SetupDefault installs a JSON structured logger as the process-wide
// default. Production passes os.Stdout; tests pass a buffer.
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}
