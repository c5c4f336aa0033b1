package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrHandlerRequired    = sterrors.New("lambdaflow: handler is required")
	ErrInvokerRequired    = sterrors.New("lambdaflow: invoke function is required")
	ErrLookupRequired     = sterrors.New("lambdaflow: environment lookup is required")
	ErrMissingRequestID   = sterrors.New("lambdaflow: next invocation response carries no request id")
	ErrEmulatorClosed     = sterrors.New("lambdaflow: control plane emulator is closed")
	ErrUnknownInvocation  = sterrors.New("lambdaflow: unknown invocation request id")
	ErrInvocationReported = sterrors.New("lambdaflow: invocation already reported")
)

// ConfigValidationError wraps the joined validation failures of a runtime configuration.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "lambdaflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// DecodeError reports an event payload that could not be converted into the
// handler's input type.
type DecodeError struct {
	TypeName string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("lambdaflow: decode payload into %s: %v", e.TypeName, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PanicError is returned in place of a panic raised by a handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("lambdaflow: handler panicked: %v", e.Value)
}

// Unwrap exposes the panic value when the handler panicked with an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
