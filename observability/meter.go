package observability

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/lexstream/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The caller shuts it down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(newResource(config.ServiceName, config.ServiceVersion, config.Environment)),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments for client streams and served lookups.
// All methods are safe on a nil *Metrics.
type Metrics struct {
	streamActive     metric.Int64UpDownCounter
	streamOpened     metric.Int64Counter
	streamFinished   metric.Int64Counter
	streamDuration   metric.Float64Histogram
	streamFirstFrame metric.Float64Histogram
	streamFrames     metric.Int64Counter
	decodeErrors     metric.Int64Counter

	lookupActive   metric.Int64UpDownCounter
	lookupServed   metric.Int64Counter
	lookupDuration metric.Float64Histogram

	tally tally
}

// MetricsSnapshot is the process-local view of the counters, served by
// the /metrics endpoint.
type MetricsSnapshot struct {
	Streams StreamCounts `json:"streams"`
	Lookups LookupCounts `json:"lookups"`
}

// StreamCounts tallies client stream connections.
type StreamCounts struct {
	Active       int64            `json:"active"`
	Opened       int64            `json:"opened"`
	Joined       int64            `json:"joined"`
	Frames       int64            `json:"frames"`
	DecodeErrors int64            `json:"decode_errors"`
	Finished     map[string]int64 `json:"finished"`
}

// LookupCounts tallies lookup streams served by the backend.
type LookupCounts struct {
	Active  int64            `json:"active"`
	Chunked int64            `json:"chunked"`
	Served  map[string]int64 `json:"served"`
}

type tally struct {
	streamActive, opened, joined, frames, decodeErrors atomic.Int64
	lookupActive, chunked                              atomic.Int64

	mu       sync.Mutex
	finished map[string]int64
	served   map[string]int64
}

func (t *tally) bump(m *map[string]int64, outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if *m == nil {
		*m = make(map[string]int64)
	}
	(*m)[outcome]++
}

// Snapshot returns the counters recorded so far. A nil *Metrics yields
// zero counts.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Streams: StreamCounts{Finished: map[string]int64{}},
		Lookups: LookupCounts{Served: map[string]int64{}},
	}
	if m == nil {
		return snap
	}
	t := &m.tally
	snap.Streams.Active = t.streamActive.Load()
	snap.Streams.Opened = t.opened.Load()
	snap.Streams.Joined = t.joined.Load()
	snap.Streams.Frames = t.frames.Load()
	snap.Streams.DecodeErrors = t.decodeErrors.Load()
	snap.Lookups.Active = t.lookupActive.Load()
	snap.Lookups.Chunked = t.chunked.Load()

	t.mu.Lock()
	defer t.mu.Unlock()
	maps.Copy(snap.Streams.Finished, t.finished)
	maps.Copy(snap.Lookups.Served, t.served)
	return snap
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.streamOpened, "stream.opened", "Stream open requests, by whether they joined a live connection"},
		{&m.streamFinished, "stream.finished", "Streams resolved, by outcome and error code"},
		{&m.streamFrames, "stream.frames", "Decoded frames, by event kind"},
		{&m.decodeErrors, "stream.decode_errors", "Frames that failed to decode or violated sequencing"},
		{&m.lookupServed, "lookup.served", "Lookup streams served, by outcome"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}

	gauges := []struct {
		dst  *metric.Int64UpDownCounter
		name string
		desc string
	}{
		{&m.streamActive, "stream.active", "Live client stream connections"},
		{&m.lookupActive, "lookup.active", "Lookup streams currently being served"},
	}
	for _, g := range gauges {
		if *g.dst, err = meter.Int64UpDownCounter(g.name, metric.WithDescription(g.desc)); err != nil {
			return nil, fmt.Errorf("creating %s gauge: %w", g.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.streamDuration, "stream.duration", "Stream lifetime from open to resolution"},
		{&m.streamFirstFrame, "stream.first_frame", "Time from open to the first frame"},
		{&m.lookupDuration, "lookup.duration", "Time spent serving a lookup stream"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("s")); err != nil {
			return nil, fmt.Errorf("creating %s histogram: %w", h.name, err)
		}
	}

	return m, nil
}

// StreamOpened records an Open call; joined is true for single-flight joins.
func (m *Metrics) StreamOpened(ctx context.Context, joined bool) {
	if m == nil {
		return
	}
	m.streamOpened.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttrJoined, joined)))
	m.tally.opened.Add(1)
	if joined {
		m.tally.joined.Add(1)
		return
	}
	m.streamActive.Add(ctx, 1)
	m.tally.streamActive.Add(1)
}

// FirstFrame records the latency until the first frame arrived.
func (m *Metrics) FirstFrame(ctx context.Context, latency time.Duration) {
	if m == nil {
		return
	}
	m.streamFirstFrame.Record(ctx, latency.Seconds())
}

// FrameDecoded counts a decoded frame by event kind.
func (m *Metrics) FrameDecoded(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.streamFrames.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrEventKind, kind)))
	m.tally.frames.Add(1)
}

// DecodeError counts a non-fatal decode or sequence error.
func (m *Metrics) DecodeError(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.decodeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	m.tally.decodeErrors.Add(1)
}

// StreamFinished records a resolved connection. code is empty on success.
func (m *Metrics) StreamFinished(ctx context.Context, outcome, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.streamActive.Add(ctx, -1)
	m.streamFinished.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.String(AttrErrorCode, code),
	))
	m.streamDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
	m.tally.streamActive.Add(-1)
	m.tally.bump(&m.tally.finished, outcome)
}

// LookupStarted marks a lookup stream as being served.
func (m *Metrics) LookupStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.lookupActive.Add(ctx, 1)
	m.tally.lookupActive.Add(1)
}

// LookupFinished records a served lookup stream.
func (m *Metrics) LookupFinished(ctx context.Context, outcome string, chunked bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.lookupActive.Add(ctx, -1)
	m.lookupServed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Bool(AttrChunked, chunked),
	))
	m.lookupDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
	m.tally.lookupActive.Add(-1)
	if chunked {
		m.tally.chunked.Add(1)
	}
	m.tally.bump(&m.tally.served, outcome)
}
