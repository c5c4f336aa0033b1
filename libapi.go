package lambdaflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	runtimepkg "github.com/drblury/lambdaflow/internal/runtime"
	configpkg "github.com/drblury/lambdaflow/internal/runtime/config"
	errspkg "github.com/drblury/lambdaflow/internal/runtime/errors"
	handlerpkg "github.com/drblury/lambdaflow/internal/runtime/handlers"
	idspkg "github.com/drblury/lambdaflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/lambdaflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/lambdaflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/lambdaflow/internal/runtime/metadata"
	"github.com/drblury/lambdaflow/internal/runtime/protocol"
	transportpkg "github.com/drblury/lambdaflow/internal/runtime/transport"
)

type (
	Handler[I any, O any]     = handlerpkg.Handler[I, O]
	HandlerFunc[I any, O any] = handlerpkg.HandlerFunc[I, O]
	InvocationContext         = handlerpkg.InvocationContext
	Void                      = handlerpkg.Void

	Config = configpkg.Config
	Lookup = configpkg.Lookup

	Client        = transportpkg.Client
	Response      = transportpkg.Response
	StatusError   = transportpkg.StatusError
	RestyClient   = transportpkg.RestyClient
	RestyOption   = transportpkg.RestyOption
	Endpoint      = protocol.Endpoint
	ErrorResponse = protocol.ErrorResponse

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Invocation lifecycle hooks
	InvocationInfo  = runtimepkg.InvocationInfo
	InvocationHooks = runtimepkg.InvocationHooks

	InvocationMetrics = runtimepkg.InvocationMetrics

	ConfigValidationError = errspkg.ConfigValidationError
	DecodeError           = errspkg.DecodeError
	PanicError            = errspkg.PanicError
)

var (
	FromEnvironment = configpkg.FromEnvironment
	OSLookup        = configpkg.OSLookup
	MapLookup       = configpkg.MapLookup

	NewRestyClient    = transportpkg.NewRestyClient
	WithTimeout       = transportpkg.WithTimeout
	WithHTTPTransport = transportpkg.WithHTTPTransport

	LoggingHooks         = runtimepkg.LoggingHooks
	MetricsHooks         = runtimepkg.MetricsHooks
	NewInvocationMetrics = runtimepkg.NewInvocationMetrics

	FromContext        = handlerpkg.FromContext
	TraceIDFromContext = handlerpkg.TraceIDFromContext

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrHandlerRequired  = errspkg.ErrHandlerRequired
	ErrLookupRequired   = errspkg.ErrLookupRequired
	ErrMissingRequestID = errspkg.ErrMissingRequestID

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewDiagnosticLogger  = loggingpkg.NewDiagnosticLogger
	NewNopServiceLogger  = loggingpkg.NewNopServiceLogger

	NewMetadata = metadatapkg.New

	NewRequestID = idspkg.NewRequestID
)

// Environment keys read by Start and Run.
const (
	EnvRuntimeAPI       = configpkg.EnvRuntimeAPI
	EnvLegacyRuntimeAPI = configpkg.EnvLegacyRuntimeAPI
	EnvSingleLoop       = configpkg.EnvSingleLoop
)

var exit = os.Exit

// Option customises a runtime started with Run, RunWithLookup or Start.
type Option func(*options)

type options struct {
	deps        runtimepkg.Dependencies
	handlerOpts []handlerpkg.Option
}

// WithLogger replaces the default slog logger on standard error.
func WithLogger(logger ServiceLogger) Option {
	return func(o *options) {
		o.deps.Logger = logger
	}
}

// WithClient replaces the default resty transport.
func WithClient(client Client) Option {
	return func(o *options) {
		o.deps.Client = client
	}
}

// WithHooks adds lifecycle hooks. Repeated calls are merged in order.
func WithHooks(hooks InvocationHooks) Option {
	return func(o *options) {
		o.deps.Hooks = o.deps.Hooks.Merge(hooks)
	}
}

// WithMetrics records invocation metrics on m.
func WithMetrics(m *InvocationMetrics) Option {
	return func(o *options) {
		o.deps.Metrics = m
	}
}

// WithTracer replaces the global otel tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.deps.Tracer = tracer
	}
}

// WithTextOutput reports handler results in their plain textual form.
func WithTextOutput() Option {
	return func(o *options) {
		o.handlerOpts = append(o.handlerOpts, handlerpkg.WithTextOutput())
	}
}

func collectOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Run serves handler against the control plane described by env. A nil or
// empty env runs the handler once offline.
func Run[I any, O any](ctx context.Context, handler Handler[I, O], env map[string]string, opts ...Option) error {
	return RunWithLookup(ctx, handler, configpkg.MapLookup(env), opts...)
}

// RunWithLookup is Run with the environment read through lookup.
func RunWithLookup[I any, O any](ctx context.Context, handler Handler[I, O], lookup Lookup, opts ...Option) error {
	if lookup == nil {
		return errspkg.ErrLookupRequired
	}
	o := collectOptions(opts)

	invoke, err := handlerpkg.Build(handler, o.handlerOpts...)
	if err != nil {
		return err
	}
	rt, err := runtimepkg.New(configpkg.FromEnvironment(lookup), invoke, o.deps)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// Start serves handler using the process environment until SIGINT or SIGTERM,
// and exits with status 1 on a fatal error.
func Start[I any, O any](handler Handler[I, O], opts ...Option) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := RunWithLookup(ctx, handler, configpkg.OSLookup, opts...)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	logger := collectOptions(opts).deps.Logger
	if logger == nil {
		logger = loggingpkg.NewDiagnosticLogger(os.Stderr, slog.LevelInfo)
	}
	logger.Error("lambdaflow runtime exited", err, nil)
	exit(1)
}
