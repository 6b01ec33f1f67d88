package common

import (
	"log/slog"
	"os"
)

// NewLogger builds the default JSON logger used by the smaller binaries.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
