// Package controlplane is an in-process implementation of the runtime side of
// the 2018-06-01 control-plane protocol. It queues events, hands them out from
// the long-polling next endpoint and records what the runtime reports back.
//
// It exists for local runs and tests; it does not enforce deadlines or retry
// failed invocations.
package controlplane
