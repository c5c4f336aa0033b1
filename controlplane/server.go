package controlplane

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	errspkg "github.com/drblury/lambdaflow/internal/runtime/errors"
	idspkg "github.com/drblury/lambdaflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/lambdaflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/lambdaflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/lambdaflow/internal/runtime/metadata"
	"github.com/drblury/lambdaflow/internal/runtime/protocol"
)

const invocationsTopic = "lambdaflow.invocations"

var newPubSub = func(cfg gochannel.Config, logger loggingpkg.ServiceLogger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, loggingpkg.NewWatermillAdapter(logger))
}

// Kind tells what a runtime reported for an invocation.
type Kind string

const (
	KindResponse  Kind = "response"
	KindError     Kind = "error"
	KindInitError Kind = "init_error"
)

// Result is one report received from the runtime.
type Result struct {
	RequestID  string
	Kind       Kind
	Body       []byte
	ReceivedAt time.Time
}

// Server serves the runtime API. Create it with New and mount Handler on an
// HTTP server.
type Server struct {
	logger      loggingpkg.ServiceLogger
	pubSub      *gochannel.GoChannel
	invocations <-chan *message.Message
	router      chi.Router

	functionARN string
	timeout     time.Duration

	queue     chan *message.Message
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu        sync.Mutex
	pending   map[string]struct{}
	reported  map[string]struct{}
	results   []Result
	changed   chan struct{}
	nextCalls int
	closed    bool
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the logger used for request and queue diagnostics.
func WithLogger(logger loggingpkg.ServiceLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFunctionARN sets the invoked function ARN announced with every event.
func WithFunctionARN(arn string) Option {
	return func(s *Server) {
		s.functionARN = arn
	}
}

// WithInvocationTimeout announces a deadline of now+d when an event is handed out.
func WithInvocationTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithQueueSize bounds the number of events waiting to be published.
func WithQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.queue = make(chan *message.Message, n)
		}
	}
}

// New starts the event queue and builds the router.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		logger:   loggingpkg.NewNopServiceLogger(),
		queue:    make(chan *message.Message, 256),
		closing:  make(chan struct{}),
		pending:  make(map[string]struct{}),
		reported: make(map[string]struct{}),
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Publishing blocks until the next handler acks, so events leave in FIFO order.
	s.pubSub = newPubSub(gochannel.Config{BlockPublishUntilSubscriberAck: true}, s.logger)
	invocations, err := s.pubSub.Subscribe(context.Background(), invocationsTopic)
	if err != nil {
		_ = s.pubSub.Close()
		return nil, fmt.Errorf("lambdaflow: subscribe to invocation queue: %w", err)
	}
	s.invocations = invocations

	s.router = s.routes()

	s.wg.Add(1)
	go s.publishLoop()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/"+protocol.Version+"/runtime", func(r chi.Router) {
		r.Get("/invocation/next", s.handleNext)
		r.Post("/invocation/{requestID}/response", s.handleReport(KindResponse))
		r.Post("/invocation/{requestID}/error", s.handleReport(KindError))
		r.Post("/init/error", s.handleInitError)
	})
	return r
}

// Handler returns the HTTP handler serving the runtime API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// EventOption customises one queued event.
type EventOption func(*eventOptions)

type eventOptions struct {
	requestID string
	headers   metadatapkg.Metadata
}

// WithRequestID overrides the generated request id.
func WithRequestID(id string) EventOption {
	return func(o *eventOptions) {
		o.requestID = id
	}
}

// WithTraceID attaches a trace token to the event.
func WithTraceID(traceID string) EventOption {
	return func(o *eventOptions) {
		o.headers = o.headers.With(protocol.HeaderTraceID, traceID)
	}
}

// WithHeader attaches an arbitrary response header to the event.
func WithHeader(key, value string) EventOption {
	return func(o *eventOptions) {
		o.headers = o.headers.With(key, value)
	}
}

// Enqueue queues payload for the next runtime poll and returns its request id.
func (s *Server) Enqueue(payload []byte, opts ...EventOption) (string, error) {
	o := eventOptions{headers: metadatapkg.Metadata{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.requestID == "" {
		o.requestID = idspkg.NewRequestID()
	}
	if s.functionARN != "" && o.headers.Get(protocol.HeaderInvokedFunctionARN) == "" {
		o.headers = o.headers.With(protocol.HeaderInvokedFunctionARN, s.functionARN)
	}

	msg := message.NewMessage(o.requestID, payload)
	msg.Metadata = metadatapkg.ToWatermill(o.headers)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errspkg.ErrEmulatorClosed
	}
	select {
	case s.queue <- msg:
	default:
		return "", fmt.Errorf("lambdaflow: invocation queue is full (%d events)", cap(s.queue))
	}
	s.logger.Debug("Invocation queued", loggingpkg.LogFields{"request_id": o.requestID})
	return o.requestID, nil
}

func (s *Server) publishLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.closing:
			return
		case msg := <-s.queue:
			if err := s.pubSub.Publish(invocationsTopic, msg); err != nil {
				s.logger.Error("Failed to publish invocation", err, loggingpkg.LogFields{"request_id": msg.UUID})
			}
		}
	}
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.nextCalls++
	s.mu.Unlock()

	var msg *message.Message
	select {
	case m, ok := <-s.invocations:
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "ServiceUnavailable", errspkg.ErrEmulatorClosed.Error())
			return
		}
		msg = m
	case <-r.Context().Done():
		return
	case <-s.closing:
		writeError(w, http.StatusServiceUnavailable, "ServiceUnavailable", errspkg.ErrEmulatorClosed.Error())
		return
	}
	msg.Ack()

	s.mu.Lock()
	s.pending[msg.UUID] = struct{}{}
	s.mu.Unlock()

	header := w.Header()
	for key, value := range metadatapkg.FromWatermill(msg.Metadata) {
		header.Set(key, value)
	}
	header.Set(protocol.HeaderRequestID, msg.UUID)
	if s.timeout > 0 {
		header.Set(protocol.HeaderDeadlineMs, strconv.FormatInt(time.Now().Add(s.timeout).UnixMilli(), 10))
	}
	header.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(msg.Payload)

	s.logger.Debug("Invocation delivered", loggingpkg.LogFields{"request_id": msg.UUID})
}

func (s *Server) handleReport(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "requestID")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}

		if err := s.record(requestID, kind, body); err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequestID", err.Error())
			return
		}
		writeAccepted(w)
	}
}

func (s *Server) handleInitError(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	s.mu.Lock()
	s.appendResult(Result{Kind: KindInitError, Body: body, ReceivedAt: time.Now()})
	s.mu.Unlock()
	writeAccepted(w)
}

func (s *Server) record(requestID string, kind Kind, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.reported[requestID]; done {
		return fmt.Errorf("%w: %s", errspkg.ErrInvocationReported, requestID)
	}
	if _, ok := s.pending[requestID]; !ok {
		return fmt.Errorf("%w: %s", errspkg.ErrUnknownInvocation, requestID)
	}
	delete(s.pending, requestID)
	s.reported[requestID] = struct{}{}
	s.appendResult(Result{RequestID: requestID, Kind: kind, Body: body, ReceivedAt: time.Now()})

	s.logger.Info("Invocation reported", loggingpkg.LogFields{
		"request_id": requestID,
		"kind":       string(kind),
		"bytes":      len(body),
	})
	return nil
}

// appendResult must be called with mu held.
func (s *Server) appendResult(res Result) {
	s.results = append(s.results, res)
	close(s.changed)
	s.changed = make(chan struct{})
}

// Results returns a copy of every report received so far, in arrival order.
func (s *Server) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}

// WaitForResults blocks until at least n reports arrived or ctx is done.
func (s *Server) WaitForResults(ctx context.Context, n int) ([]Result, error) {
	for {
		s.mu.Lock()
		if len(s.results) >= n {
			out := make([]Result, len(s.results))
			copy(out, s.results)
			s.mu.Unlock()
			return out, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return s.Results(), ctx.Err()
		}
	}
}

// NextCalls reports how many times the next endpoint was polled.
func (s *Server) NextCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextCalls
}

// Close stops the queue. Pending polls are answered with 503.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		close(s.closing)
		err = s.pubSub.Close()
		s.wg.Wait()
	})
	return err
}

func writeAccepted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

func writeError(w http.ResponseWriter, status int, errorType, msg string) {
	body, err := jsoncodec.Marshal(protocol.ErrorResponse{ErrorMessage: msg, ErrorType: errorType})
	if err != nil {
		http.Error(w, msg, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
