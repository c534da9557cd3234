package observability

import (
	"context"

	"github.com/google/uuid"
)

// Context keys for observability data.
type contextKey string

const (
	correlationIDCtxKey contextKey = "correlation_id"
	sweepCtxKey         contextKey = "sweep"
)

// Standard attribute keys used in logs.
const (
	CorrelationIDKey = "correlation_id"
	SweepKey         = "sweep"
	ErrorKey         = "error"
)

// WithCorrelationID adds a correlation ID to the context.
// If id is empty, a new UUID is generated.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// WithSweep tags the context with the name of the running sweep.
func WithSweep(ctx context.Context, sweep string) context.Context {
	return context.WithValue(ctx, sweepCtxKey, sweep)
}

// SweepFromContext extracts the sweep name from context.
func SweepFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(sweepCtxKey).(string); ok {
		return s
	}
	return ""
}

// NewSweepContext creates a context carrying a fresh correlation ID and the
// sweep name, used for one externally-triggered unit of work.
func NewSweepContext(ctx context.Context, sweep string) context.Context {
	return WithSweep(WithCorrelationID(ctx, ""), sweep)
}
