package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kbukum/lexstream/httpclient/sse"
	"github.com/kbukum/lexstream/resilience"
)

// Adapter is a configurable HTTP client with auth, TLS, and resilience.
type Adapter struct {
	httpClient   *http.Client
	streamClient *http.Client
	config       Config
	cb           *resilience.CircuitBreaker
	rl           *resilience.RateLimiter
}

// Option customizes an Adapter after construction.
type Option func(*Adapter)

// WithTransport replaces the underlying RoundTripper, e.g. to add tracing.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *Adapter) {
		a.httpClient.Transport = rt
		a.streamClient.Transport = rt
	}
}

// New creates a new HTTP adapter with the given configuration.
func New(cfg Config, opts ...Option) (*Adapter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}

	a := &Adapter{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		// Streams outlive any fixed timeout; their context bounds them.
		streamClient: &http.Client{Transport: transport},
		config:       cfg,
	}

	if cfg.CircuitBreaker != nil {
		a.cb = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	if cfg.RateLimiter != nil {
		a.rl = resilience.NewRateLimiter(*cfg.RateLimiter)
	}

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Do executes an HTTP request and returns the complete response.
func (a *Adapter) Do(ctx context.Context, req Request) (*Response, error) {
	if a.config.Retry != nil {
		return resilience.Retry(ctx, *a.config.Retry, func() (*Response, error) {
			return a.doOnce(ctx, req)
		})
	}
	return a.doOnce(ctx, req)
}

// DoStream executes an HTTP request and returns a streaming response once the
// headers are in. The caller must Close it. Retry is not applied; the
// rate limiter and circuit breaker are.
func (a *Adapter) DoStream(ctx context.Context, req Request) (*StreamResponse, error) {
	return guarded(ctx, a, func() (*StreamResponse, error) {
		return a.openStream(ctx, req)
	})
}

func (a *Adapter) doOnce(ctx context.Context, req Request) (*Response, error) {
	return guarded(ctx, a, func() (*Response, error) {
		return a.executeRequest(ctx, req)
	})
}

// guarded runs fn behind the rate limiter and circuit breaker, when configured.
func guarded[T any](ctx context.Context, a *Adapter, fn func() (T, error)) (T, error) {
	var zero T
	if a.rl != nil {
		if err := a.rl.Wait(ctx); err != nil {
			return zero, limiterError(ctx, err)
		}
	}
	if a.cb == nil {
		return fn()
	}

	done, err := a.cb.Allow()
	if err != nil {
		var open *resilience.OpenError
		errors.As(err, &open)
		return zero, NewCircuitOpenError(a.config.Name, open.RetryIn)
	}
	result, err := fn()
	done(err)
	return result, err
}

// limiterError classifies a failed rate limiter wait.
func limiterError(ctx context.Context, err error) *Error {
	var limited *resilience.LimitedError
	switch {
	case errors.As(err, &limited):
		return NewRateLimitError(err, limited.RetryAfter)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return NewCanceledError(err)
	default:
		return NewTimeoutError(err)
	}
}

func (a *Adapter) executeRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := a.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewConnectionError(fmt.Errorf("read response body: %w", err))
	}

	result := &Response{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		Body:       body,
	}
	if classErr := classifyResponse(resp, body); classErr != nil {
		return result, classErr
	}
	return result, nil
}

func (a *Adapter) openStream(ctx context.Context, req Request) (*StreamResponse, error) {
	httpReq, err := a.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := a.streamClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		return nil, classifyResponse(resp, body)
	}

	out := &StreamResponse{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeaders(resp.Header),
		rawResp:    resp,
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		out.SSE = sse.NewReader(resp.Body)
	} else {
		out.Body = resp.Body
	}
	return out, nil
}

// transportError classifies a failed round trip. A canceled context is kept
// distinct from a deadline so callers can tell a cancel from a timeout.
func transportError(ctx context.Context, err error) *Error {
	switch ctx.Err() {
	case nil:
		return NewConnectionError(err)
	case context.Canceled:
		return NewCanceledError(err)
	default:
		return NewTimeoutError(err)
	}
}

func (a *Adapter) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := req.Path
	if a.config.BaseURL != "" && !strings.HasPrefix(req.Path, "http://") && !strings.HasPrefix(req.Path, "https://") {
		url = strings.TrimRight(a.config.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("encode body: %v", err))
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("create request: %v", err))
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	auth := a.config.Auth
	if req.Auth != nil {
		auth = req.Auth
	}
	if err := auth.apply(httpReq); err != nil {
		return nil, err
	}

	return httpReq, nil
}

func encodeBody(body any) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	switch v := body.(type) {
	case io.Reader:
		return v, "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func flattenHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return a.config.Name
}

// BaseURL returns the configured base URL.
func (a *Adapter) BaseURL() string {
	return a.config.BaseURL
}

// IsAvailable reports false while the circuit breaker is open.
func (a *Adapter) IsAvailable(_ context.Context) bool {
	if a.cb != nil {
		return a.cb.State() != resilience.StateOpen
	}
	return true
}

// Breaker reports the circuit breaker's state; ok is false without one.
func (a *Adapter) Breaker() (snap resilience.BreakerSnapshot, ok bool) {
	if a.cb == nil {
		return snap, false
	}
	return a.cb.Snapshot(), true
}

// Close releases idle connections.
func (a *Adapter) Close(_ context.Context) error {
	a.httpClient.CloseIdleConnections()
	a.streamClient.CloseIdleConnections()
	return nil
}
