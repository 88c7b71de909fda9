// Package stream is the progressive lookup client. A Manager opens one
// Server-Sent Events connection per resource key; concurrent requests for
// the same key join it. Each connection runs a dispatch goroutine that
// feeds frames through a Decoder into an Assembler, which reports
// normalized progress, buffers result chunks by index, and resolves the
// connection exactly once.
//
// Failures are *errors.AppError values with STREAM_* codes. Only transport
// failures, connect timeouts and a full concurrency limit are retryable;
// DoWithRetry applies a resilience.RetryConfig to those.
//
//	adapter, _ := httpclient.New(httpclient.Config{BaseURL: "http://localhost:8080"})
//	mgr, _ := stream.NewManager(stream.NewHTTPTransport(adapter, cfg), cfg)
//	entry, err := stream.Do[dictionary.Entry](ctx, mgr, "serendipity")
package stream
