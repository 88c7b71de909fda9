package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation tracks one served lookup: a span plus the lookup metrics.
type Operation struct {
	span    trace.Span
	metrics *Metrics
	start   time.Time
	chunked bool
}

// StartOperation starts a span named name and marks the lookup active.
// metrics may be nil.
func StartOperation(ctx context.Context, metrics *Metrics, name string, attrs ...attribute.KeyValue) (context.Context, *Operation) {
	ctx, span := StartSpan(ctx, name, trace.WithAttributes(attrs...))
	metrics.LookupStarted(ctx)
	return ctx, &Operation{span: span, metrics: metrics, start: time.Now()}
}

// MarkChunked records that the result was sent in chunks.
func (o *Operation) MarkChunked() {
	o.chunked = true
	o.span.SetAttributes(attribute.Bool(AttrChunked, true))
}

// End closes the span and records the outcome.
func (o *Operation) End(ctx context.Context, outcome string, err error) {
	duration := time.Since(o.start)
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	}
	o.span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	o.span.End()
	o.metrics.LookupFinished(ctx, outcome, o.chunked, duration)
}

// Duration returns the elapsed time since the operation started.
func (o *Operation) Duration() time.Duration {
	return time.Since(o.start)
}
