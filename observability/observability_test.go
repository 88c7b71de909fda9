package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/lexstream/component"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumTotal(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected int64 sum, got %T", agg)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func newRecordingMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func TestMetrics_StreamLifecycle(t *testing.T) {
	m, reader := newRecordingMetrics(t)
	ctx := context.Background()

	m.StreamOpened(ctx, false)
	m.StreamOpened(ctx, true)
	m.FirstFrame(ctx, 20*time.Millisecond)
	m.FrameDecoded(ctx, "progress")
	m.FrameDecoded(ctx, "complete")
	m.DecodeError(ctx, "decode")
	m.StreamFinished(ctx, "resolved", "", 80*time.Millisecond)

	data := collect(t, reader)
	if got := sumTotal(t, data["stream.opened"]); got != 2 {
		t.Errorf("stream.opened = %d, want 2", got)
	}
	if got := sumTotal(t, data["stream.active"]); got != 0 {
		t.Errorf("stream.active = %d, want 0 (joins do not add connections)", got)
	}
	if got := sumTotal(t, data["stream.frames"]); got != 2 {
		t.Errorf("stream.frames = %d, want 2", got)
	}
	if got := sumTotal(t, data["stream.decode_errors"]); got != 1 {
		t.Errorf("stream.decode_errors = %d, want 1", got)
	}
	if _, ok := data["stream.duration"].(metricdata.Histogram[float64]); !ok {
		t.Errorf("expected stream.duration histogram, got %T", data["stream.duration"])
	}
}

func TestMetrics_Snapshot(t *testing.T) {
	m, _ := newRecordingMetrics(t)
	ctx := context.Background()

	m.StreamOpened(ctx, false)
	m.StreamOpened(ctx, true)
	m.StreamOpened(ctx, false)
	m.FrameDecoded(ctx, "progress")
	m.DecodeError(ctx, "decode")
	m.StreamFinished(ctx, "resolved", "", time.Millisecond)
	m.LookupStarted(ctx)
	m.LookupStarted(ctx)
	m.LookupFinished(ctx, "resolved", true, time.Millisecond)

	snap := m.Snapshot()
	streams, lookups := snap.Streams, snap.Lookups
	if streams.Opened != 3 || streams.Joined != 1 || streams.Active != 1 || streams.Frames != 1 || streams.DecodeErrors != 1 {
		t.Errorf("unexpected stream counts %+v", streams)
	}
	if streams.Finished["resolved"] != 1 {
		t.Errorf("unexpected finished %v", streams.Finished)
	}
	if lookups.Active != 1 || lookups.Chunked != 1 || lookups.Served["resolved"] != 1 {
		t.Errorf("unexpected lookup counts %+v", lookups)
	}

	snap.Streams.Finished["resolved"] = 99
	if m.Snapshot().Streams.Finished["resolved"] != 1 {
		t.Error("snapshot shares its map with the tally")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.StreamOpened(ctx, false)
	m.FirstFrame(ctx, time.Millisecond)
	m.FrameDecoded(ctx, "progress")
	m.DecodeError(ctx, "decode")
	m.StreamFinished(ctx, "failed", "STREAM_TIMEOUT", time.Second)
	m.LookupStarted(ctx)
	m.LookupFinished(ctx, "complete", false, time.Second)
	if snap := m.Snapshot(); snap.Streams.Opened != 0 || snap.Lookups.Served == nil {
		t.Errorf("unexpected nil snapshot %+v", snap)
	}
}

func TestNewMetrics_Noop(t *testing.T) {
	if _, err := NewMetrics(noop.NewMeterProvider().Meter("test")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func withSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestOperation(t *testing.T) {
	rec := withSpanRecorder(t)
	m, reader := newRecordingMetrics(t)

	ctx, op := StartOperation(context.Background(), m, SpanLookupServe, attribute.String(AttrStreamKey, "serendipity"))
	op.MarkChunked()
	op.End(ctx, "failed", errors.New("client gone"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != SpanLookupServe || s.Status().Code != codes.Error {
		t.Errorf("unexpected span %s status %v", s.Name(), s.Status())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrStreamKey].AsString() != "serendipity" || !attrs[AttrChunked].AsBool() || attrs[AttrOutcome].AsString() != "failed" {
		t.Errorf("unexpected attributes %v", attrs)
	}

	data := collect(t, reader)
	if got := sumTotal(t, data["lookup.served"]); got != 1 {
		t.Errorf("lookup.served = %d, want 1", got)
	}
	if got := sumTotal(t, data["lookup.active"]); got != 0 {
		t.Errorf("lookup.active = %d, want 0", got)
	}
}

func TestSpanHelpers(t *testing.T) {
	rec := withSpanRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanStreamConnection)
	SetSpanAttribute(ctx, "s", "v")
	SetSpanAttribute(ctx, "i", 3)
	SetSpanAttribute(ctx, "b", true)
	SetSpanAttribute(ctx, "ss", []string{"a"})
	SetSpanAttribute(ctx, "ignored", struct{}{})
	SetSpanError(ctx, errors.New("boom"))
	span.End()

	s := rec.Ended()[0]
	if len(s.Attributes()) != 4 {
		t.Errorf("expected 4 attributes, got %v", s.Attributes())
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected recorded error event, got %d", len(s.Events()))
	}

	// No span in context: helpers are no-ops.
	SetSpanAttribute(context.Background(), "k", "v")
	SetSpanError(context.Background(), errors.New("x"))
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.MetricInterval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	cfg.ServiceName = "lexstream"
	if tc := cfg.TracerConfig(); tc.ServiceName != "lexstream" || tc.SampleRate != 1.0 {
		t.Errorf("unexpected tracer config %+v", tc)
	}
	if mc := cfg.MeterConfig(); mc.Interval != 15*time.Second {
		t.Errorf("unexpected meter config %+v", mc)
	}

	cfg.SampleRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected sample rate error")
	}
}

func TestSampler(t *testing.T) {
	tests := map[float64]string{
		1.0: "ParentBased{root:AlwaysOnSampler",
		0:   "AlwaysOffSampler",
		0.5: "ParentBased{root:TraceIDRatioBased{0.5}",
	}
	for rate, prefix := range tests {
		if got := sampler(rate).Description(); len(got) < len(prefix) || got[:len(prefix)] != prefix {
			t.Errorf("sampler(%v) = %q, want prefix %q", rate, got, prefix)
		}
	}
}

func TestComponent_Disabled(t *testing.T) {
	c := NewComponent(Config{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h := c.Health(context.Background())
	if h.Status != component.StatusHealthy || h.Message != "disabled" {
		t.Errorf("unexpected health %+v", h)
	}
	if c.Describe().Details != "disabled" {
		t.Errorf("unexpected description %+v", c.Describe())
	}
}

func TestComponent_EnabledLifecycle(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	c := NewComponent(Config{Enabled: true, Endpoint: "127.0.0.1:1", Insecure: true, ServiceName: "lexstream"})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.tp == nil || c.mp == nil {
		t.Fatal("expected providers to be installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	stopErr := c.Stop(ctx)

	h := c.Health(context.Background())
	if (stopErr != nil) != (h.Status == component.StatusDegraded) {
		t.Errorf("health %s does not reflect stop error %v", h.Status, stopErr)
	}
	if c.tp != nil || c.mp != nil {
		t.Error("expected providers cleared after Stop")
	}
}
