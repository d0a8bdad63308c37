package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel represents different logging levels
type LogLevel int

// LogLevelDebug represents debug logging level
const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Logger provides structured logging for the cache system.
// A nil *Logger and a Logger without a backing slog.Logger discard
// everything.
type Logger struct {
	logger *slog.Logger
}

// LogConfig holds configuration for the cache logger.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error)
	Level LogLevel
	// JSON selects the JSON handler instead of the text handler
	JSON bool
	// EnableCallerInfo includes file and line number in logs
	EnableCallerInfo bool
	// Output receives log records. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultLogConfig returns a default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level: LogLevelInfo,
	}
}

// NewLogger creates a new structured logger with the given configuration.
func NewLogger(config LogConfig) *Logger {
	return &Logger{logger: NewSlogLogger(config)}
}

// NewSlogLogger creates the slog.Logger that NewLogger wraps. It is exposed
// for callers that hand a plain *slog.Logger to resolver options.
func NewSlogLogger(config LogConfig) *slog.Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     config.Level.slogLevel(),
		AddSource: config.EnableCallerInfo,
	}

	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// FromSlog wraps an existing slog.Logger. A nil logger yields a no-op Logger.
func FromSlog(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// NewNopLogger creates a no-op logger that discards all log messages.
func NewNopLogger() *Logger {
	return &Logger{}
}

// Debug logs debug-level messages
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	if l != nil && l.logger != nil {
		l.logger.DebugContext(ctx, msg, args...)
	}
}

// Info logs info-level messages
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	if l != nil && l.logger != nil {
		l.logger.InfoContext(ctx, msg, args...)
	}
}

// Warn logs warning-level messages
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	if l != nil && l.logger != nil {
		l.logger.WarnContext(ctx, msg, args...)
	}
}

// Error logs error-level messages
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	if l != nil && l.logger != nil {
		l.logger.ErrorContext(ctx, msg, args...)
	}
}

// With returns a logger with additional context fields
func (l *Logger) With(args ...any) *Logger {
	if l == nil || l.logger == nil {
		return l
	}
	return &Logger{logger: l.logger.With(args...)}
}

// WithOperation returns a logger with operation context
func (l *Logger) WithOperation(operation Operation) *Logger {
	return l.With("operation", string(operation))
}

// Operation represents different types of cache operations for logging.
type Operation string

// Operation constants for cache operations
const (
	OpIndexArchive  Operation = "index_archive"
	OpResolveClass  Operation = "resolve_class"
	OpBuildPlugin   Operation = "build_plugin"
	OpLoadConfig    Operation = "load_config"
	OpReleaseMemory Operation = "release_memory"
)

// LogCacheHit logs a cache hit event.
func LogCacheHit(ctx context.Context, logger *Logger, operation Operation, key string) {
	logger.Debug(ctx, "cache hit",
		"operation", string(operation),
		"key", key,
		"result", "hit")
}

// LogCacheMiss logs a cache miss event.
func LogCacheMiss(ctx context.Context, logger *Logger, operation Operation, key string, state State) {
	logger.Debug(ctx, "cache miss",
		"operation", string(operation),
		"key", key,
		"state", state.String(),
		"result", "miss")
}

// ParseLogLevel parses a string log level into a LogLevel.
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
