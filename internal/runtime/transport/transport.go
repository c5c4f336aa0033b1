package transport

import (
	"context"
	"fmt"

	metadatapkg "github.com/drblury/lambdaflow/internal/runtime/metadata"
)

// Client issues the blocking control-plane calls. Implementations decide
// their own timeout and cancellation policy.
type Client interface {
	Get(ctx context.Context, url string) (*Response, error)
	Post(ctx context.Context, url string, body []byte) error
}

// Response is the outcome of a successful Get.
type Response struct {
	StatusCode int
	Header     metadatapkg.Metadata
	Body       []byte
}

// StatusError reports a non-2xx answer from the control plane.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lambdaflow: %s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}
