// Package protocol describes the control-plane HTTP surface: URL templates,
// header names and the wire error payload.
package protocol

import (
	"fmt"
	"net/url"

	jsoncodec "github.com/drblury/lambdaflow/internal/runtime/jsoncodec"
)

// Version is the protocol version path segment.
const Version = "2018-06-01"

// Headers returned by the next-invocation call.
const (
	HeaderRequestID          = "Lambda-Runtime-Aws-Request-Id"
	HeaderTraceID            = "Lambda-Runtime-Trace-Id"
	HeaderDeadlineMs         = "Lambda-Runtime-Deadline-Ms"
	HeaderInvokedFunctionARN = "Lambda-Runtime-Invoked-Function-Arn"
)

// Path templates relative to the endpoint.
const (
	nextPathTemplate     = "/%s/runtime/invocation/next"
	responsePathTemplate = "/%s/runtime/invocation/%s/response"
	errorPathTemplate    = "/%s/runtime/invocation/%s/error"
	initErrorTemplate    = "/%s/runtime/init/error"
)

// Endpoint builds the protocol URLs for one control-plane host:port.
type Endpoint struct {
	Host string
}

// NextURL is polled for the next invocation event.
func (e Endpoint) NextURL() string {
	return e.url(NextPath())
}

// ResponseURL receives the encoded result of requestID.
func (e Endpoint) ResponseURL(requestID string) string {
	return e.url(ResponsePath(requestID))
}

// ErrorURL receives the error payload of requestID.
func (e Endpoint) ErrorURL(requestID string) string {
	return e.url(ErrorPath(requestID))
}

func (e Endpoint) url(path string) string {
	return "http://" + e.Host + path
}

// NextPath returns the next-invocation path.
func NextPath() string {
	return fmt.Sprintf(nextPathTemplate, Version)
}

// ResponsePath returns the success path for requestID.
func ResponsePath(requestID string) string {
	return fmt.Sprintf(responsePathTemplate, Version, url.PathEscape(requestID))
}

// ErrorPath returns the failure path for requestID.
func ErrorPath(requestID string) string {
	return fmt.Sprintf(errorPathTemplate, Version, url.PathEscape(requestID))
}

// InitErrorPath returns the initialisation-failure path.
func InitErrorPath() string {
	return fmt.Sprintf(initErrorTemplate, Version)
}

// ErrorResponse is the JSON body posted to the error endpoint.
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
}

// InvocationError is the only error payload that crosses the wire. Handler
// error details stay in the local diagnostic log.
var InvocationError = ErrorResponse{
	ErrorMessage: "Invocation Error",
	ErrorType:    "RuntimeError",
}

// InvocationErrorBody returns the encoded InvocationError.
func InvocationErrorBody() []byte {
	body, err := jsoncodec.Marshal(InvocationError)
	if err != nil {
		panic(fmt.Sprintf("lambdaflow: encode invocation error: %v", err))
	}
	return body
}
