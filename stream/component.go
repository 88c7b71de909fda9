package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/lexstream/component"
	"github.com/kbukum/lexstream/resilience"
)

// Component runs a Manager under the component registry.
type Component struct {
	mgr *Manager
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps mgr.
func NewComponent(mgr *Manager) *Component {
	return &Component{mgr: mgr}
}

// Manager returns the wrapped manager.
func (c *Component) Manager() *Manager { return c.mgr }

// Name implements component.Component.
func (c *Component) Name() string { return "stream" }

// Start implements component.Component. Connections open on demand.
func (c *Component) Start(context.Context) error { return nil }

// Stop cancels every live stream.
func (c *Component) Stop(ctx context.Context) error {
	return c.mgr.Shutdown(ctx)
}

// breakerReporter is implemented by transports guarded by a circuit breaker.
type breakerReporter interface {
	Breaker() (resilience.BreakerSnapshot, bool)
}

// Health reports the live streams, free slots and the backend circuit.
func (c *Component) Health(context.Context) component.ComponentHealth {
	active := c.mgr.Active()
	h := component.ComponentHealth{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Details: map[string]any{"active": len(active)},
	}
	if b := c.mgr.bulkhead; b != nil {
		h.Details["available"] = b.Available()
		if b.Available() == 0 {
			h.Status = component.StatusDegraded
			h.Message = fmt.Sprintf("all %d stream slots in use", b.MaxConcurrent())
		}
	}
	if br, ok := c.mgr.transport.(breakerReporter); ok {
		if snap, ok := br.Breaker(); ok {
			h.Details["circuit"] = snap.State.String()
			if snap.State == resilience.StateOpen {
				h.Status = component.StatusDegraded
				h.Message = fmt.Sprintf("%s circuit open after %d failures, retry in %s",
					snap.Name, snap.Failures, snap.RetryIn.Round(time.Second))
			}
		}
	}
	return h
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Stream Manager",
		Type:    "stream",
		Details: c.mgr.cfg.Describe(),
	}
}
