package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/lambdaflow/internal/runtime/config"
	errspkg "github.com/drblury/lambdaflow/internal/runtime/errors"
	handlerspkg "github.com/drblury/lambdaflow/internal/runtime/handlers"
	idspkg "github.com/drblury/lambdaflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/lambdaflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/lambdaflow/internal/runtime/metadata"
	"github.com/drblury/lambdaflow/internal/runtime/protocol"
	transportpkg "github.com/drblury/lambdaflow/internal/runtime/transport"
)

var newDefaultLogger = func() loggingpkg.ServiceLogger {
	return loggingpkg.NewDiagnosticLogger(os.Stderr, slog.LevelInfo)
}

var newDefaultClient = func(logger loggingpkg.ServiceLogger) transportpkg.Client {
	return transportpkg.NewRestyClient(transportpkg.WithLogger(logger))
}

// Dependencies holds the optional collaborators of a Runtime.
// Leave fields nil to get the defaults.
type Dependencies struct {
	// Client talks to the control plane. Defaults to a resty client. Unused offline.
	Client transportpkg.Client
	// Logger receives diagnostics and, offline, the handler results.
	// Defaults to slog text output on standard error.
	Logger loggingpkg.ServiceLogger
	Hooks  InvocationHooks
	// Metrics, when set, records invocation outcomes and report failures.
	Metrics *InvocationMetrics
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
	// NewRequestID generates offline request ids. Defaults to ULIDs.
	NewRequestID func() string
}

// Runtime drives the fetch, invoke and report loop against one control plane.
type Runtime struct {
	cfg      configpkg.Config
	endpoint protocol.Endpoint
	invoke   handlerspkg.InvokeFunc

	client       transportpkg.Client
	logger       loggingpkg.ServiceLogger
	hooks        InvocationHooks
	metrics      *InvocationMetrics
	tracer       trace.Tracer
	newRequestID func() string
}

// New validates cfg and builds a Runtime around invoke.
func New(cfg configpkg.Config, invoke handlerspkg.InvokeFunc, deps Dependencies) (*Runtime, error) {
	if invoke == nil {
		return nil, errspkg.ErrInvokerRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Offline() {
		cfg.SingleIteration = true
	}

	r := &Runtime{
		cfg:          cfg,
		endpoint:     protocol.Endpoint{Host: cfg.Endpoint},
		invoke:       invoke,
		client:       deps.Client,
		logger:       deps.Logger,
		hooks:        deps.Hooks,
		metrics:      deps.Metrics,
		tracer:       deps.Tracer,
		newRequestID: deps.NewRequestID,
	}
	if r.logger == nil {
		r.logger = newDefaultLogger()
	}
	if r.client == nil && !cfg.Offline() {
		r.client = newDefaultClient(r.logger)
	}
	if r.tracer == nil {
		r.tracer = defaultTracer()
	}
	if r.newRequestID == nil {
		r.newRequestID = idspkg.NewRequestID
	}
	if r.metrics != nil {
		if err := r.metrics.Register(); err != nil {
			return nil, fmt.Errorf("lambdaflow: register metrics: %w", err)
		}
		r.hooks = r.hooks.Merge(MetricsHooks(r.metrics))
	}
	return r, nil
}

// Config returns the configuration the runtime was built with.
func (r *Runtime) Config() configpkg.Config {
	return r.cfg
}

// Run processes invocations until the configured iteration policy stops it, a
// fatal error occurs or ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("Starting runtime", loggingpkg.LogFields{
		"config": r.cfg.String(),
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Iterate(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			r.logger.Error("Runtime stopped", err, nil)
			return err
		}
		if r.cfg.SingleIteration {
			return nil
		}
	}
}

// Iterate handles exactly one invocation. Handler failures are reported to the
// control plane and do not produce an error; only a failed fetch or a failed
// response post is returned.
func (r *Runtime) Iterate(ctx context.Context) error {
	requestID, headers, payload, err := r.next(ctx)
	if err != nil {
		return err
	}

	ictx := handlerspkg.NewInvocationContext(requestID, headers, r.logger)
	ctx = handlerspkg.WithInvocationContext(ctx, ictx)
	ctx, span := startInvocationSpan(ctx, r.tracer, ictx)
	defer span.End()

	info := InvocationInfo{
		RequestID: requestID,
		TraceID:   ictx.TraceID,
		Offline:   r.cfg.Offline(),
		Context:   ctx,
		StartedAt: time.Now(),
	}
	r.hooks.start(info)

	body, err := r.safeInvoke(ctx, ictx, payload)
	info.Duration = time.Since(info.StartedAt)
	if err != nil {
		markSpanFailed(span, err)
		r.hooks.failed(info, err)
		r.reportError(ctx, ictx, err)
		return nil
	}

	if err := r.reportResponse(ctx, ictx, body); err != nil {
		markSpanFailed(span, err)
		r.hooks.failed(info, err)
		return err
	}
	r.hooks.done(info)
	return nil
}

// next fetches the next event. Offline it fabricates an empty one.
func (r *Runtime) next(ctx context.Context) (string, metadatapkg.Metadata, []byte, error) {
	if r.cfg.Offline() {
		return r.newRequestID(), nil, nil, nil
	}

	resp, err := r.client.Get(ctx, r.endpoint.NextURL())
	if err != nil {
		return "", nil, nil, fmt.Errorf("lambdaflow: fetch next invocation: %w", err)
	}
	requestID := resp.Header.Get(protocol.HeaderRequestID)
	if requestID == "" {
		return "", nil, nil, errspkg.ErrMissingRequestID
	}
	return requestID, resp.Header, resp.Body, nil
}

func (r *Runtime) safeInvoke(ctx context.Context, ictx *handlerspkg.InvocationContext, payload []byte) (body []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &errspkg.PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return r.invoke(ctx, ictx, payload)
}

func (r *Runtime) reportResponse(ctx context.Context, ictx *handlerspkg.InvocationContext, body []byte) error {
	if r.cfg.Offline() {
		ictx.Log(string(body))
		return nil
	}

	if err := r.client.Post(ctx, r.endpoint.ResponseURL(ictx.RequestID), body); err != nil {
		r.recordReportFailure(ReportResponse)
		ictx.Logger.Error("Failed to post invocation response", err, nil)
		return fmt.Errorf("lambdaflow: post response for %s: %w", ictx.RequestID, err)
	}
	return nil
}

// reportError logs err and posts the fixed error payload. A failed post is
// logged and otherwise ignored.
func (r *Runtime) reportError(ctx context.Context, ictx *handlerspkg.InvocationContext, err error) {
	fields := loggingpkg.LogFields{}
	var panicErr *errspkg.PanicError
	if errors.As(err, &panicErr) {
		fields["stack"] = string(panicErr.Stack)
	}
	ictx.Logger.Error("Invocation failed", err, fields)

	if r.cfg.Offline() {
		return
	}
	if postErr := r.client.Post(ctx, r.endpoint.ErrorURL(ictx.RequestID), protocol.InvocationErrorBody()); postErr != nil {
		r.recordReportFailure(ReportError)
		ictx.Logger.Error("Failed to post invocation error", postErr, nil)
	}
}

func (r *Runtime) recordReportFailure(kind string) {
	if r.metrics != nil {
		r.metrics.RecordReportFailure(kind)
	}
}
