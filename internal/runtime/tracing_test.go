package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	handlerspkg "github.com/drblury/lambdaflow/internal/runtime/handlers"
	"github.com/drblury/lambdaflow/internal/runtime/protocol"
)

func newRecordingTracer(t *testing.T) (*tracetest.SpanRecorder, trace.Tracer) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return recorder, provider.Tracer("test")
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	attrs := map[attribute.Key]string{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value.AsString()
	}
	return attrs
}

func TestInvocationSpans(t *testing.T) {
	recorder, tracer := newRecordingTracer(t)
	client := newFakeClient(
		event("req-1", `"ok"`, protocol.HeaderTraceID, "Root=1-abc", protocol.HeaderInvokedFunctionARN, "arn:fn"),
		event("req-2", `"fail"`),
	)
	invoke := build(t, handlerspkg.HandlerFunc[string, string](func(ctx context.Context, in string, _ *handlerspkg.InvocationContext) (string, error) {
		assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
		if in == "fail" {
			return "", errors.New("bad")
		}
		return in, nil
	}))

	r, err := New(onlineConfig(false), invoke, Dependencies{Client: client, Logger: newRecordingLogger(), Tracer: tracer})
	require.NoError(t, err)
	require.ErrorIs(t, r.Run(context.Background()), errNoMoreEvents)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "lambdaflow.Invoke", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	attrs := spanAttributes(spans[0])
	assert.Equal(t, "req-1", attrs["faas.invocation_id"])
	assert.Equal(t, "Root=1-abc", attrs["lambdaflow.trace_token"])
	assert.Equal(t, "arn:fn", attrs["faas.invoked_function_arn"])
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	attrs = spanAttributes(spans[1])
	assert.Equal(t, "req-2", attrs["faas.invocation_id"])
	_, hasTrace := attrs["lambdaflow.trace_token"]
	assert.False(t, hasTrace)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "bad", spans[1].Status().Description)
}
