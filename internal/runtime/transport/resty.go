package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	loggingpkg "github.com/drblury/lambdaflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/lambdaflow/internal/runtime/metadata"
)

// RestyOption customises the resty client backing a RestyClient.
type RestyOption func(*resty.Client)

// WithTimeout bounds every request. The default is no timeout because the
// next-invocation call is a long poll.
func WithTimeout(d time.Duration) RestyOption {
	return func(c *resty.Client) {
		c.SetTimeout(d)
	}
}

// WithHTTPTransport replaces the underlying round tripper.
func WithHTTPTransport(rt http.RoundTripper) RestyOption {
	return func(c *resty.Client) {
		c.SetTransport(rt)
	}
}

// WithLogger routes resty's own diagnostics through logger.
func WithLogger(logger loggingpkg.ServiceLogger) RestyOption {
	return func(c *resty.Client) {
		c.SetLogger(restyLogger{log: logger})
	}
}

// RestyClient is the default Client, backed by go-resty.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient builds a RestyClient with JSON defaults.
func NewRestyClient(opts ...RestyOption) *RestyClient {
	c := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "lambdaflow")
	for _, opt := range opts {
		opt(c)
	}
	return &RestyClient{client: c}
}

func (r *RestyClient) Get(ctx context.Context, url string) (*Response, error) {
	resp, err := r.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("lambdaflow: GET %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Method: http.MethodGet, URL: url, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return &Response{
		StatusCode: resp.StatusCode(),
		Header:     metadatapkg.FromHTTPHeader(resp.Header()),
		Body:       resp.Body(),
	}, nil
}

// Post sends body to url. An empty body is sent without a payload.
func (r *RestyClient) Post(ctx context.Context, url string, body []byte) error {
	req := r.client.R().SetContext(ctx)
	if len(body) > 0 {
		req.SetBody(body)
	}
	resp, err := req.Post(url)
	if err != nil {
		return fmt.Errorf("lambdaflow: POST %s: %w", url, err)
	}
	if !resp.IsSuccess() {
		return &StatusError{Method: http.MethodPost, URL: url, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

type restyLogger struct {
	log loggingpkg.ServiceLogger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...), nil, loggingpkg.LogFields{"component": "resty"})
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...), loggingpkg.LogFields{"component": "resty"})
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.log.Debug(fmt.Sprintf(format, v...), loggingpkg.LogFields{"component": "resty"})
}
