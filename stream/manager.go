package stream

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kbukum/lexstream/logger"
	"github.com/kbukum/lexstream/observability"
	"github.com/kbukum/lexstream/resilience"
	"github.com/kbukum/lexstream/validation"
)

var errShutdown = errors.New("stream manager is shut down")

// Manager owns stream connections, at most one live connection per key.
type Manager struct {
	transport Transport
	cfg       Config
	log       *logger.Logger
	metrics   *observability.Metrics
	bulkhead  *resilience.Bulkhead

	mu       sync.Mutex
	conns    map[string]*Connection
	shutdown bool
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *logger.Logger) ManagerOption {
	return func(m *Manager) { m.log = l.WithComponent("stream") }
}

// WithMetrics records stream metrics on m.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a manager that opens streams through t.
func NewManager(t Transport, cfg Config, opts ...ManagerOption) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		transport: t,
		cfg:       cfg,
		log:       logger.WithComponent("stream"),
		conns:     make(map[string]*Connection),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.MaxConcurrent > 0 {
		m.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
			Name:          "stream",
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.MaxWait,
			OnReject: func(name string) {
				m.log.Warn("stream rejected; concurrency limit reached", logger.Fields("limit", cfg.MaxConcurrent))
			},
		})
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// Open returns the live connection for req.Key, joining it if one is
// connecting or open, and starts a new one otherwise. req's handlers stay
// subscribed until the connection resolves or ctx is done.
func (m *Manager) Open(ctx context.Context, req Request) (*Connection, error) {
	if err := validation.New().Key("key", req.Key, m.cfg.MaxKeyLength).Err(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, canceledBy(ctx)
	}

	if c, err := m.join(ctx, req); c != nil || err != nil {
		return c, err
	}

	var release func()
	if m.bulkhead != nil {
		r, err := m.bulkhead.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, canceledBy(ctx)
			}
			return nil, errBusy(err)
		}
		release = r
	}

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		releaseSlot(release)
		return nil, errCanceled(errShutdown)
	}
	// Another request may have opened the key while we waited for a slot.
	if c := m.conns[req.Key]; c != nil && c.subscribe(ctx, req) {
		m.mu.Unlock()
		releaseSlot(release)
		m.metrics.StreamOpened(ctx, true)
		return c, nil
	}
	c := newConnection(ctx, m, req.Key, release)
	c.subscribe(ctx, req)
	m.conns[req.Key] = c
	m.mu.Unlock()

	m.metrics.StreamOpened(ctx, false)
	go c.run(m.transport, m.cfg)
	return c, nil
}

func (m *Manager) join(ctx context.Context, req Request) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return nil, errCanceled(errShutdown)
	}
	c := m.conns[req.Key]
	if c == nil || !c.subscribe(ctx, req) {
		return nil, nil
	}
	m.metrics.StreamOpened(ctx, true)
	c.log.Debug("joined live stream")
	return c, nil
}

// Close releases c. It is safe to call any number of times; closing a
// connection that has not resolved cancels it.
func (m *Manager) Close(c *Connection) {
	if c == nil {
		return
	}
	c.close()

	m.mu.Lock()
	if m.conns[c.key] == c {
		delete(m.conns, c.key)
	}
	m.mu.Unlock()
}

// Cancel ends c early. Once Cancel returns no further callbacks start and
// waiters get STREAM_CANCELED.
func (m *Manager) Cancel(c *Connection) {
	if c == nil {
		return
	}
	c.canceled.Store(true)
	m.Close(c)
}

// Get returns the live connection for key, or nil.
func (m *Manager) Get(key string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.conns[key]; c != nil && c.live() {
		return c
	}
	return nil
}

// Active returns the keys of live connections, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.conns))
	for k, c := range m.conns {
		if c.live() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Shutdown cancels every connection, rejects new ones and waits for the
// dispatch loops to exit or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		m.Cancel(c)
	}
	for _, c := range conns {
		select {
		case <-c.exited:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if len(conns) > 0 {
		m.log.Info("stream manager shut down", logger.Fields("canceled", len(conns)))
	}
	return nil
}

func releaseSlot(release func()) {
	if release != nil {
		release()
	}
}
