package stream

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/kbukum/lexstream/errors"
	"github.com/kbukum/lexstream/httpclient"
	"github.com/kbukum/lexstream/httpclient/sse"
	"github.com/kbukum/lexstream/resilience"
)

// FrameSource yields the frames of one open transport. Next returns io.EOF
// at a clean end of stream.
type FrameSource interface {
	Next() (*sse.Frame, error)
	Close() error
}

// Transport opens a frame source for a resource key. Open may block until
// the backend answers; it must return when ctx is done.
type Transport interface {
	Open(ctx context.Context, key string) (FrameSource, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, key string) (FrameSource, error)

// Open calls f.
func (f TransportFunc) Open(ctx context.Context, key string) (FrameSource, error) {
	return f(ctx, key)
}

// HTTPTransport streams lookups over an httpclient.Adapter.
type HTTPTransport struct {
	adapter  *httpclient.Adapter
	path     string
	keyParam string
}

// NewHTTPTransport creates a transport issuing GET {path}?{key_param}={key}.
func NewHTTPTransport(adapter *httpclient.Adapter, cfg Config) *HTTPTransport {
	cfg.ApplyDefaults()
	return &HTTPTransport{adapter: adapter, path: cfg.Path, keyParam: cfg.KeyParam}
}

// Breaker reports the lookup backend's circuit breaker, if the adapter has one.
func (t *HTTPTransport) Breaker() (resilience.BreakerSnapshot, bool) {
	return t.adapter.Breaker()
}

// Open starts the request and returns once the response headers are in.
func (t *HTTPTransport) Open(ctx context.Context, key string) (FrameSource, error) {
	resp, err := t.adapter.DoStream(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   t.path,
		Query:  map[string]string{t.keyParam: key},
		Headers: map[string]string{
			"Accept":        "text/event-stream",
			"Cache-Control": "no-cache",
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.SSE == nil {
		_ = resp.Close()
		return nil, apperrors.New(apperrors.ErrCodeStreamProtocol,
			fmt.Sprintf("The lookup service answered with %q instead of an event stream.", resp.Headers["Content-Type"]),
			http.StatusBadGateway)
	}
	return &httpSource{resp: resp}, nil
}

type httpSource struct {
	resp *httpclient.StreamResponse
}

func (s *httpSource) Next() (*sse.Frame, error) { return s.resp.SSE.Next() }
func (s *httpSource) Close() error              { return s.resp.Close() }
