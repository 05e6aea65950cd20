package middleware

import (
	"context"

	"github.com/Suhaibinator/SOnion/pkg/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// traceIDKey is the key used to store the trace ID in the request context
type traceIDKey struct{}

var TraceIDKey = traceIDKey{}

// TraceIDStateKey is the Context.State key holding the trace ID.
const TraceIDStateKey = "trace_id"

// TraceIDHeader is the response header carrying the trace ID.
const TraceIDHeader = "X-Request-ID"

// TraceID creates a middleware that assigns a unique trace ID to each request.
// An incoming X-Request-ID header is reused when present. The ID is stored in the
// Context state and the request context, echoed as a response header and attached
// to the request-scoped logger.
func TraceID() Middleware {
	return func(c *common.Context, next common.Next) error {
		traceID := c.Get(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.State[TraceIDStateKey] = traceID
		c.Req = c.Req.WithContext(context.WithValue(c.Req.Context(), TraceIDKey, traceID))
		c.Request.Req = c.Req
		c.Set(TraceIDHeader, traceID)
		c.SetLogger(c.Logger().With(zap.String("trace_id", traceID)))

		return next()
	}
}

// GetTraceID extracts the trace ID from the Context.
// Returns an empty string if no trace ID is found.
func GetTraceID(c *common.Context) string {
	if traceID, ok := c.State[TraceIDStateKey].(string); ok {
		return traceID
	}
	return ""
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
