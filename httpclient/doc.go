// Package httpclient provides the HTTP adapter lexstream uses to reach the
// lookup backend: default headers and auth, TLS, a rate limiter and circuit
// breaker around every call, retry for plain requests, and streaming
// responses with an SSE frame reader.
//
//	a, err := httpclient.New(httpclient.Config{
//	    BaseURL:        "http://localhost:8080",
//	    Auth:           httpclient.BearerTokenSource(mint),
//	    CircuitBreaker: httpclient.DefaultCircuitBreakerConfig("lookupd"),
//	})
//	resp, err := a.DoStream(ctx, httpclient.Request{
//	    Path:    "/api/v1/lookup/stream",
//	    Query:   map[string]string{"word": "serendipity"},
//	    Headers: map[string]string{"Accept": "text/event-stream"},
//	})
//	defer resp.Close()
//	frame, err := resp.SSE.Next()
package httpclient
