package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	correlationIDKey
)

const (
	RequestIDHeader     = "X-Request-ID"
	CorrelationIDHeader = "X-Correlation-ID"
)

func NewID() string {
	return uuid.NewString()
}

// RequestIDFromContext returns the request ID, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithIDs stores both IDs on ctx.
func WithIDs(ctx context.Context, requestID, correlationID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// FromHeaders reuses inbound IDs when present. A missing correlation ID falls
// back to the request ID.
func FromHeaders(requestID, correlationID string) (string, string) {
	if requestID == "" {
		requestID = NewID()
	}
	if correlationID == "" {
		correlationID = requestID
	}
	return requestID, correlationID
}
