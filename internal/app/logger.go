package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the application logger. Production deployments run
// with LOG_FORMAT=json so log aggregation can parse entries; anything
// else gets the human-readable text handler.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	}
	return slog.New(handler).With(slog.String("service", "garagehq"))
}
