package logger

import (
	"log/slog"
	"os"
)

// New creates the JSON structured logger the whole bot shares.
func New() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler)
}
