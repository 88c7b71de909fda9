package stream

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/kbukum/lexstream/errors"
	"github.com/kbukum/lexstream/resilience"
)

// Option configures a request made through Do.
type Option func(*Request)

// WithProgress subscribes fn to progress updates.
func WithProgress(fn func(Progress)) Option {
	return func(r *Request) { r.Handlers.OnProgress = fn }
}

// WithPartialResult subscribes fn to result chunks as they arrive.
func WithPartialResult(fn func(Partial)) Option {
	return func(r *Request) { r.Handlers.OnPartialResult = fn }
}

// WithWarning subscribes fn to frames that were skipped as undecodable.
func WithWarning(fn func(*apperrors.AppError)) Option {
	return func(r *Request) { r.Handlers.OnWarning = fn }
}

// Do streams key and decodes the result into T. It returns when the stream
// resolves, fails, or ctx is done; the connection is always released.
//
//	entry, err := stream.Do[dictionary.Entry](ctx, mgr, "serendipity",
//	    stream.WithProgress(func(p stream.Progress) { bar.Set(p.Value) }))
func Do[T any](ctx context.Context, m *Manager, key string, opts ...Option) (T, error) {
	var zero T
	req := Request{Key: key}
	for _, opt := range opts {
		opt(&req)
	}

	conn, err := m.Open(ctx, req)
	if err != nil {
		return zero, err
	}
	res, err := conn.Wait(ctx)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(res.Payload, &out); err != nil {
		return zero, errDeserialize(err)
	}
	return out, nil
}

// DoWithRetry runs Do under cfg, retrying failures marked retryable.
// Progress restarts from zero on every attempt.
func DoWithRetry[T any](ctx context.Context, m *Manager, key string, cfg resilience.RetryConfig, opts ...Option) (T, error) {
	if cfg.RetryIf == nil {
		cfg.RetryIf = resilience.DefaultRetryIf
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
			m.log.Info("retrying stream", map[string]interface{}{
				"key":     key,
				"attempt": attempt,
				"backoff": backoff.String(),
				"error":   err.Error(),
			})
		}
	}
	return resilience.Retry(ctx, cfg, func() (T, error) {
		return Do[T](ctx, m, key, opts...)
	})
}
