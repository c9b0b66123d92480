package events

import (
	"context"
)

type contextKey int

const (
	loggerKey contextKey = iota
	containerKey
)

// FromContext extracts logger from context.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok && l != nil {
		return l
	}
	return defaultLogger
}

// WithLogger adds logger to context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithContainer tags the context logger with the container being loaded.
func WithContainer(ctx context.Context, path string) context.Context {
	logger := FromContext(ctx).WithField("container", path)
	ctx = context.WithValue(ctx, containerKey, path)
	return WithLogger(ctx, logger)
}

// GetContainer retrieves the container path from context.
func GetContainer(ctx context.Context) string {
	if p, ok := ctx.Value(containerKey).(string); ok {
		return p
	}
	return ""
}

var defaultLogger = NewNopLogger()

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
