// Package log provides structured logging utilities for the dashd pool dashboard.
// It wraps the standard library's slog package with additional convenience methods.
package log

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger wraps slog.Logger with additional context and convenience methods
type Logger struct {
	*slog.Logger
	service string
	version string
}

// New creates a new logger with the specified configuration
func New(service, version, level, format string) *Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	baseLogger := slog.New(handler).With(
		"service", service,
		"version", version,
	)

	return &Logger{
		Logger:  baseLogger,
		service: service,
		version: version,
	}
}

// WithContext returns a logger with request-scoped fields pulled from the context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if reqID := ctx.Value("request_id"); reqID != nil {
		logger = logger.With("request_id", reqID)
	}

	return &Logger{
		Logger:  logger,
		service: l.service,
		version: l.version,
	}
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger:  l.With(fields...),
		service: l.service,
		version: l.version,
	}
}

// WithComponent returns a logger with a component field
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

// WithUser returns a logger with the mining address being served
func (l *Logger) WithUser(address string) *Logger {
	return l.WithFields("user_address", address)
}

// WithWorker returns a logger with user and worker fields
func (l *Logger) WithWorker(address, worker string) *Logger {
	return l.WithFields("user_address", address, "worker_name", worker)
}

// WithCurrency returns a logger with a currency field
func (l *Logger) WithCurrency(currency string) *Logger {
	return l.WithFields("currency", currency)
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

// LogDuration logs the duration of an operation
func (l *Logger) LogDuration(operation string, d time.Duration) {
	l.Info("operation completed",
		"operation", operation,
		"duration_ms", float64(d.Nanoseconds())/1e6,
	)
}

// LogCacheResult logs a stats-cache lookup outcome (debug level)
func (l *Logger) LogCacheResult(key string, hit bool) {
	l.Debug("cache lookup",
		"key", key,
		"hit", hit,
	)
}

// LogCommandAttempt logs a signed-command authorization attempt
func (l *Logger) LogCommandAttempt(address string, messageLen int) {
	l.Info("signed command received",
		"user_address", address,
		"message_bytes", messageLen,
	)
}

// LogCommandResult logs the outcome of a signed-command authorization
func (l *Logger) LogCommandResult(address, outcome string) {
	l.Info("signed command processed",
		"user_address", address,
		"outcome", outcome,
	)
}

// LogRoundRollover logs a round counter rollover triggered by a block find
func (l *Logger) LogRoundRollover(algo, blockHash string) {
	l.Info("round rollover",
		"algo", algo,
		"block_hash", blockHash,
	)
}
