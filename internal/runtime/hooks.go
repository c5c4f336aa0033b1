package runtime

import (
	"context"
	"time"

	loggingpkg "github.com/drblury/lambdaflow/internal/runtime/logging"
)

// InvocationInfo describes one invocation to hooks.
type InvocationInfo struct {
	// RequestID is the control-plane id, or a generated ULID offline.
	RequestID string
	// TraceID is the trace token handed out with the event, if any.
	TraceID string
	// Offline is set when no control plane is configured.
	Offline bool
	// Context is the context the handler runs with.
	Context context.Context
	// StartedAt is when the payload was handed to the handler.
	StartedAt time.Time
	// Duration is how long the handler took (only set in OnInvocationDone and OnInvocationError).
	Duration time.Duration
}

// InvocationHooks defines callbacks for invocation lifecycle events.
// All hooks are optional - nil hooks are simply not called.
type InvocationHooks struct {
	// OnInvocationStart is called after the event is fetched and before it is decoded.
	OnInvocationStart func(info InvocationInfo)

	// OnInvocationDone is called once the result was reported.
	OnInvocationDone func(info InvocationInfo)

	// OnInvocationError is called when decoding, the handler, encoding or the
	// response post failed.
	OnInvocationError func(info InvocationInfo, err error)
}

// Merge combines two InvocationHooks. The hooks from other run after the hooks from h.
func (h InvocationHooks) Merge(other InvocationHooks) InvocationHooks {
	return InvocationHooks{
		OnInvocationStart: chainInfoHooks(h.OnInvocationStart, other.OnInvocationStart),
		OnInvocationDone:  chainInfoHooks(h.OnInvocationDone, other.OnInvocationDone),
		OnInvocationError: chainErrorHooks(h.OnInvocationError, other.OnInvocationError),
	}
}

func (h InvocationHooks) start(info InvocationInfo) {
	if h.OnInvocationStart != nil {
		h.OnInvocationStart(info)
	}
}

func (h InvocationHooks) done(info InvocationInfo) {
	if h.OnInvocationDone != nil {
		h.OnInvocationDone(info)
	}
}

func (h InvocationHooks) failed(info InvocationInfo, err error) {
	if h.OnInvocationError != nil {
		h.OnInvocationError(info, err)
	}
}

func chainInfoHooks(a, b func(InvocationInfo)) func(InvocationInfo) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info InvocationInfo) {
		a(info)
		b(info)
	}
}

func chainErrorHooks(a, b func(InvocationInfo, error)) func(InvocationInfo, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info InvocationInfo, err error) {
		a(info, err)
		b(info, err)
	}
}

// LoggingHooks returns pre-built hooks that log invocation lifecycle events at debug level.
// Failures are always logged by the runtime itself.
func LoggingHooks(logger loggingpkg.ServiceLogger) InvocationHooks {
	return InvocationHooks{
		OnInvocationStart: func(info InvocationInfo) {
			logger.Debug("Invocation started", loggingpkg.LogFields{
				"request_id": info.RequestID,
				"trace_id":   info.TraceID,
				"offline":    info.Offline,
			})
		},
		OnInvocationDone: func(info InvocationInfo) {
			logger.Debug("Invocation completed", loggingpkg.LogFields{
				"request_id":  info.RequestID,
				"duration_ms": info.Duration.Milliseconds(),
			})
		},
		OnInvocationError: func(info InvocationInfo, err error) {
			logger.Debug("Invocation errored", loggingpkg.LogFields{
				"request_id":  info.RequestID,
				"duration_ms": info.Duration.Milliseconds(),
				"error":       err.Error(),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that record invocation outcomes on m.
func MetricsHooks(m *InvocationMetrics) InvocationHooks {
	if m == nil {
		return InvocationHooks{}
	}
	return InvocationHooks{
		OnInvocationDone: func(info InvocationInfo) {
			m.RecordInvocation(OutcomeSuccess, info.Duration)
		},
		OnInvocationError: func(info InvocationInfo, _ error) {
			m.RecordInvocation(OutcomeError, info.Duration)
		},
	}
}
