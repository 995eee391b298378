package logging

import (
	"log/slog"
	"os"
)

// Logger is the slog logger for background workers. The HTTP request path
// logs through zerolog; workers without a request context log through this.
type Logger struct {
	*slog.Logger
}

// New creates a new structured logger.
func New(level slog.Level, format string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Component returns a logger tagged with the worker it belongs to.
func (l *Logger) Component(name string) *slog.Logger {
	return l.Logger.With("component", name)
}

// ParseLevel parses a log level string.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
