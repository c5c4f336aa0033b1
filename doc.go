// Package lambdaflow is a custom runtime for serverless functions speaking the
// 2018-06-01 runtime API. It long-polls the control plane for the next event,
// hands the decoded payload to a typed Handler and posts the encoded result,
// or a fixed error payload, back to the control plane.
//
// A handler is any value implementing Handler[I, O]. The runtime decodes the
// event into I with sonic (or protojson when I is a proto.Message) and encodes
// O the same way. String outputs, and any output when WithTextOutput is set,
// are reported in their plain textual form. A nil result is reported as an
// empty body.
//
//	type echo struct{}
//
//	func (echo) Handle(ctx context.Context, in string, ictx *lambdaflow.InvocationContext) (string, error) {
//		return in, nil
//	}
//
//	func main() {
//		lambdaflow.Start[string, string](echo{})
//	}
//
// # Environment
//
// RUNTIME_API_ENDPOINT (falling back to AWS_LAMBDA_RUNTIME_API) names the
// control plane as host:port. Without it the handler runs once offline with a
// generated request id and its result is logged instead of posted.
// SINGLE_LOOP=true stops the runtime after one invocation.
//
// # Failures
//
// Handler errors, panics and undecodable payloads are logged with the request
// id and reported with {"errorMessage":"Invocation Error","errorType":"RuntimeError"}.
// A failed fetch of the next event, or a failed post of a successful result,
// stops the runtime and is returned from Run.
//
// # Observability
//
// Each invocation runs in an OpenTelemetry span named lambdaflow.Invoke.
// WithMetrics records Prometheus counters and a duration histogram, and
// WithHooks attaches lifecycle callbacks such as LoggingHooks.
//
// The controlplane package serves the same API in process for local runs and
// tests; cmd/lambdaflow-emulator wraps it in a CLI.
package lambdaflow
