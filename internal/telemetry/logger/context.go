package logger

import "context"

type contextKey string

const (
	loggerKey contextKey = "stillpoint.logger"
	runIDKey  contextKey = "stillpoint.run_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRunID adds the process run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also tags the logger with the run
// ID from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if id := RunIDFromContext(ctx); id != "" {
		l = l.With("run_id", id)
	}
	return l
}
