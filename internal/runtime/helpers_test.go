package runtime

import (
	"context"
	"errors"
	"sync"

	loggingpkg "github.com/drblury/lambdaflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/lambdaflow/internal/runtime/metadata"
	"github.com/drblury/lambdaflow/internal/runtime/protocol"
	transportpkg "github.com/drblury/lambdaflow/internal/runtime/transport"
)

var errNoMoreEvents = errors.New("no more events")

type queuedEvent struct {
	headers metadatapkg.Metadata
	body    []byte
}

func event(requestID string, body string, headers ...string) queuedEvent {
	md := metadatapkg.New(headers...).With(protocol.HeaderRequestID, requestID)
	return queuedEvent{headers: md, body: []byte(body)}
}

type postCall struct {
	url  string
	body string
}

// fakeClient serves queued events and records posts. Once the queue is
// drained Get fails with errNoMoreEvents.
type fakeClient struct {
	mu      sync.Mutex
	events  []queuedEvent
	gets    []string
	posts   []postCall
	getErr  error
	postErr func(url string) error
}

func newFakeClient(events ...queuedEvent) *fakeClient {
	return &fakeClient{events: events}
}

func (f *fakeClient) Get(_ context.Context, url string) (*transportpkg.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, url)
	if f.getErr != nil {
		return nil, f.getErr
	}
	if len(f.events) == 0 {
		return nil, errNoMoreEvents
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return &transportpkg.Response{StatusCode: 200, Header: ev.headers, Body: ev.body}, nil
}

func (f *fakeClient) Post(_ context.Context, url string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, postCall{url: url, body: string(body)})
	if f.postErr != nil {
		return f.postErr(url)
	}
	return nil
}

func (f *fakeClient) Gets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gets...)
}

func (f *fakeClient) Posts() []postCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postCall(nil), f.posts...)
}

type loggedEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]loggedEntry
	bound   loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]loggedEntry{}}
}

func (r *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	bound := loggingpkg.LogFields{}
	for k, v := range r.bound {
		bound[k] = v
	}
	for k, v := range fields {
		bound[k] = v
	}
	return &recordingLogger{mu: r.mu, entries: r.entries, bound: bound}
}

func (r *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	merged := loggingpkg.LogFields{}
	for k, v := range r.bound {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.entries = append(*r.entries, loggedEntry{level: level, msg: msg, err: err, fields: merged})
}

func (r *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	r.record("debug", msg, nil, fields)
}

func (r *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	r.record("info", msg, nil, fields)
}

func (r *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	r.record("error", msg, err, fields)
}

func (r *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	r.record("trace", msg, nil, fields)
}

func (r *recordingLogger) Entries(level string) []loggedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []loggedEntry
	for _, e := range *r.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}
