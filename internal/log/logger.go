// Package log configures the process-wide slog logger.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Format selects the log output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures Setup.
type Options struct {
	Level  string
	Format Format
	Output io.Writer // defaults to os.Stderr
}

// ParseLevel maps a level name to a slog.Level. Unknown names fall back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger for opts without installing it.
func New(opts Options) *slog.Logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	level := ParseLevel(opts.Level)

	if opts.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(level),
		ReportTimestamp: true,
		Prefix:          "granny",
	})
	return slog.New(handler)
}

// Setup installs the logger described by opts as the slog default.
func Setup(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// WithComponent returns the default logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return slog.Default().With(slog.String("component", name))
}

// WithRun returns the default logger with the run_id field set.
func WithRun(id string) *slog.Logger {
	return slog.Default().With(slog.String("run_id", id))
}
