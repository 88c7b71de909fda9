package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/lexstream/component"
)

const componentName = "telemetry"

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component installs the OTLP tracer and meter providers on Start and
// flushes them on Stop. A disabled config makes it a no-op.
type Component struct {
	cfg Config

	mu  sync.Mutex
	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider
	err error
}

// NewComponent creates a telemetry component.
func NewComponent(cfg Config) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg}
}

// Name returns the component name.
func (c *Component) Name() string { return componentName }

// Start creates the exporters. Exporters connect lazily, so an unreachable
// collector does not fail startup.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tp, err := InitTracer(ctx, c.cfg.TracerConfig())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	mp, err := InitMeter(ctx, c.cfg.MeterConfig())
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("telemetry: %w", err)
	}
	c.tp, c.mp = tp, mp
	return nil
}

// Stop flushes and shuts down both providers.
func (c *Component) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.tp != nil {
		errs = append(errs, c.tp.Shutdown(ctx))
		c.tp = nil
	}
	if c.mp != nil {
		errs = append(errs, c.mp.Shutdown(ctx))
		c.mp = nil
	}
	c.err = errors.Join(errs...)
	return c.err
}

// Health reports degraded when the last shutdown failed to flush.
func (c *Component) Health(_ context.Context) component.ComponentHealth {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := component.ComponentHealth{Name: componentName, Status: component.StatusHealthy}
	if !c.cfg.Enabled {
		h.Message = "disabled"
	}
	if c.err != nil {
		h.Status = component.StatusDegraded
		h.Message = c.err.Error()
	}
	return h
}

// Describe returns a summary line for the startup banner.
func (c *Component) Describe() component.Description {
	details := "disabled"
	if c.cfg.Enabled {
		details = fmt.Sprintf("otlp=%s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate)
	}
	return component.Description{Name: "Telemetry", Type: "telemetry", Details: details}
}
