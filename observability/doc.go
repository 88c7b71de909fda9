// Package observability wires OpenTelemetry tracing and metrics for lookup
// streams, exported over OTLP HTTP.
//
//	tel := observability.NewComponent(cfg.Telemetry)
//	registry.Register(tel)
//
//	metrics, err := observability.NewMetrics(observability.Meter("lexstream"))
//	metrics.StreamOpened(ctx, false)
//	metrics.StreamFinished(ctx, "resolved", "", time.Since(start))
//
// The backend wraps each served lookup in an Operation:
//
//	ctx, op := observability.StartOperation(ctx, metrics, observability.SpanLookupServe)
//	defer op.End(ctx, "complete", nil)
package observability
