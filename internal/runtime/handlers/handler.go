package handlers

import (
	"context"
	"reflect"

	errspkg "github.com/drblury/lambdaflow/internal/runtime/errors"
)

// Handler is the application capability invoked once per event.
type Handler[I any, O any] interface {
	Handle(ctx context.Context, input I, ictx *InvocationContext) (O, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc[I any, O any] func(ctx context.Context, input I, ictx *InvocationContext) (O, error)

func (f HandlerFunc[I, O]) Handle(ctx context.Context, input I, ictx *InvocationContext) (O, error) {
	return f(ctx, input, ictx)
}

// Void is the output type of handlers that return nothing. A nil *Void is
// reported as an empty body.
type Void struct{}

// InvokeFunc is the untyped form driven by the runtime loop: it decodes
// payload, calls the handler and returns the encoded result.
type InvokeFunc func(ctx context.Context, ictx *InvocationContext, payload []byte) ([]byte, error)

// Option customises how a handler's output is encoded.
type Option func(*options)

type options struct {
	textOutput bool
}

// WithTextOutput reports the result's plain textual form (fmt.Sprint) instead
// of its JSON encoding. String outputs always use the textual form.
func WithTextOutput() Option {
	return func(o *options) {
		o.textOutput = true
	}
}

// Build converts a typed handler into an InvokeFunc.
func Build[I any, O any](handler Handler[I, O], opts ...Option) (InvokeFunc, error) {
	if isNilHandler(handler) {
		return nil, errspkg.ErrHandlerRequired
	}

	var cfg options
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	codec := NewCodec[I, O](cfg.textOutput)
	return func(ctx context.Context, ictx *InvocationContext, payload []byte) ([]byte, error) {
		input, err := codec.Decode(payload)
		if err != nil {
			return nil, err
		}

		output, err := handler.Handle(ctx, input, ictx)
		if err != nil {
			return nil, err
		}

		return codec.Encode(output)
	}, nil
}

func isNilHandler(handler any) bool {
	if handler == nil {
		return true
	}
	rv := reflect.ValueOf(handler)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
