package config

import (
	"io"
	"log/slog"
)

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// Log level: debug, info, warn, error
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Log format: json, text
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// NewLogger builds a logger writing to w. Verbose forces debug level.
func (c LoggingConfig) NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
