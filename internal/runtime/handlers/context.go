package handlers

import (
	"context"
	"strconv"
	"time"

	loggingpkg "github.com/drblury/lambdaflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/lambdaflow/internal/runtime/metadata"
	"github.com/drblury/lambdaflow/internal/runtime/protocol"
)

// InvocationContext carries the identity of one invocation and a logger bound
// to it. The runtime builds a fresh value per iteration; handlers must not
// retain it past their call.
type InvocationContext struct {
	RequestID string
	// TraceID is the opaque trace token handed out with the event, if any.
	TraceID string
	// Deadline is informational. The runtime enforces no timeout of its own.
	Deadline           time.Time
	InvokedFunctionARN string
	Headers            metadatapkg.Metadata
	Logger             loggingpkg.ServiceLogger
}

// NewInvocationContext builds the context for requestID from the headers of
// the next-invocation response. headers may be nil in offline mode.
func NewInvocationContext(requestID string, headers metadatapkg.Metadata, logger loggingpkg.ServiceLogger) *InvocationContext {
	if logger == nil {
		logger = loggingpkg.NewNopServiceLogger()
	}
	headers = headers.Clone()

	ictx := &InvocationContext{
		RequestID:          requestID,
		TraceID:            headers.Get(protocol.HeaderTraceID),
		InvokedFunctionARN: headers.Get(protocol.HeaderInvokedFunctionARN),
		Headers:            headers,
	}
	if ms, err := strconv.ParseInt(headers.Get(protocol.HeaderDeadlineMs), 10, 64); err == nil && ms > 0 {
		ictx.Deadline = time.UnixMilli(ms)
	}

	fields := loggingpkg.LogFields{"request_id": requestID}
	if ictx.TraceID != "" {
		fields["trace_id"] = ictx.TraceID
	}
	ictx.Logger = logger.With(fields)
	return ictx
}

// Log writes msg through the bound logger.
func (c *InvocationContext) Log(msg string) {
	c.Logger.Info(msg, nil)
}

// RemainingTime reports the time left before Deadline, or zero when no
// deadline was supplied or it already passed.
func (c *InvocationContext) RemainingTime() time.Duration {
	if c.Deadline.IsZero() {
		return 0
	}
	if d := time.Until(c.Deadline); d > 0 {
		return d
	}
	return 0
}

type invocationContextKey struct{}

// WithInvocationContext attaches ictx to ctx.
func WithInvocationContext(ctx context.Context, ictx *InvocationContext) context.Context {
	return context.WithValue(ctx, invocationContextKey{}, ictx)
}

// FromContext returns the InvocationContext attached to ctx.
func FromContext(ctx context.Context) (*InvocationContext, bool) {
	ictx, ok := ctx.Value(invocationContextKey{}).(*InvocationContext)
	return ictx, ok && ictx != nil
}

// TraceIDFromContext returns the trace token of the invocation running in ctx.
func TraceIDFromContext(ctx context.Context) string {
	if ictx, ok := FromContext(ctx); ok {
		return ictx.TraceID
	}
	return ""
}
