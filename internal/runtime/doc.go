/*
Package runtime implements the invocation loop behind lambdaflow.

# Architecture Overview

A Runtime is built once from a config.Config and an untyped
handlers.InvokeFunc. Each iteration fetches one event from the control plane,
runs the handler and reports exactly one outcome:

	GET  /2018-06-01/runtime/invocation/next
	POST /2018-06-01/runtime/invocation/{id}/response   on success
	POST /2018-06-01/runtime/invocation/{id}/error      on failure

Offline (no endpoint configured) the loop runs once with a generated request
id, and the result is written to the invocation logger instead of posted.

# Failure Handling

Decode errors, handler errors and handler panics are logged and reported with
protocol.InvocationErrorBody. A failed error post is logged and otherwise
ignored. A failed fetch, a response without a request id, or a failed
response post ends Run with an error.

# Package Structure

## Runtime (runtime.go)

Dependencies carries the optional collaborators: transport client, logger,
hooks, metrics, tracer and the offline request id generator.

## Hooks (hooks.go)

InvocationHooks observe the start, success and failure of each invocation.
LoggingHooks and MetricsHooks are ready-made sets.

## Metrics (metrics.go)

InvocationMetrics exposes lambdaflow_invocations_total,
lambdaflow_invocation_duration_seconds and lambdaflow_report_failures_total.

## Tracing (tracing.go)

Every invocation runs inside a lambdaflow.Invoke span.

# Sub-packages

  - config/: endpoint and loop policy read from the environment
  - errors/: sentinel errors and error types
  - handlers/: typed handlers, invocation context and payload codec
  - ids/: ULID request ids
  - jsoncodec/: sonic-backed JSON helpers
  - logging/: logger interface and adapters
  - metadata/: header maps
  - protocol/: runtime API paths, headers and the fixed error payload
  - transport/: control-plane HTTP client
*/
package runtime
