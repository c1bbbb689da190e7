package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	base     = newBase(os.Stdout)
)

func newBase(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

// SetLevel changes the level of every logger. Unknown values mean info.
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// SetOutput redirects loggers created afterwards.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newBase(w)
}

// Logger provides structured logging for one component of the worker
type Logger struct {
	component string
	logger    *slog.Logger
}

// NewLogger creates a new logger tagged with a component name
func NewLogger(component string) *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &Logger{
		component: component,
		logger:    base.With("component", component),
	}
}

// With returns a logger that adds the key-value pairs to every message
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{component: l.component, logger: l.logger.With(keysAndValues...)}
}

// Slog exposes the underlying slog logger for libraries that take one
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}
