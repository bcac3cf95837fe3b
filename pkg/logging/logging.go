// Package logging configures the process-wide log/slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging options.
type Config struct {
	// Level is the minimum log level to output.
	Level slog.Level
	// JSON switches to JSON output (for the hosted worker).
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// FromEnv builds a Config from LOG_LEVEL (DEBUG/INFO/WARN/ERROR, default
// INFO) and LOG_FORMAT (json or text, default text).
func FromEnv() Config {
	cfg := Config{Level: slog.LevelInfo, Output: os.Stderr}

	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		cfg.Level = slog.LevelDebug
	case "WARN", "WARNING":
		cfg.Level = slog.LevelWarn
	case "ERROR":
		cfg.Level = slog.LevelError
	}

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		cfg.JSON = true
	}
	return cfg
}

// Setup initializes the default slog logger with the given configuration
// and returns it.
func Setup(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
