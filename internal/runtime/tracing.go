package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	handlerspkg "github.com/drblury/lambdaflow/internal/runtime/handlers"
)

const (
	tracerName = "lambdaflow"
	spanName   = "lambdaflow.Invoke"
)

var defaultTracer = func() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startInvocationSpan opens the span covering one invocation.
func startInvocationSpan(ctx context.Context, tracer trace.Tracer, ictx *handlerspkg.InvocationContext) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("faas.invocation_id", ictx.RequestID),
	}
	if ictx.TraceID != "" {
		attrs = append(attrs, attribute.String("lambdaflow.trace_token", ictx.TraceID))
	}
	if ictx.InvokedFunctionARN != "" {
		attrs = append(attrs, attribute.String("faas.invoked_function_arn", ictx.InvokedFunctionARN))
	}
	return tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(attrs...))
}

func markSpanFailed(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
