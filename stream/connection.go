package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/kbukum/lexstream/errors"
	"github.com/kbukum/lexstream/httpclient/sse"
	"github.com/kbukum/lexstream/logger"
	"github.com/kbukum/lexstream/observability"
)

// ConnState is the lifecycle state of a Connection.
type ConnState int32

const (
	ConnConnecting ConnState = iota
	ConnOpen
	ConnClosed
	ConnErrored
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnClosed:
		return "closed"
	case ConnErrored:
		return "errored"
	}
	return "unknown"
}

// Handlers are a subscriber's callbacks. All of them run on the connection's
// dispatch goroutine, in frame order, and must not block for long.
type Handlers struct {
	OnProgress      func(Progress)
	OnPartialResult func(Partial)
	OnComplete      func(Result)
	OnError         func(*apperrors.AppError)
	// OnWarning receives frames that failed to decode without ending the
	// stream.
	OnWarning func(*apperrors.AppError)
}

// Request asks for a stream of one resource key.
type Request struct {
	Key      string
	Handlers Handlers
	// Decode converts the final payload for OnComplete. A decode failure is
	// reported to this subscriber as STREAM_DESERIALIZE.
	Decode func(json.RawMessage) (any, error)
}

type subscriber struct {
	handlers  Handlers
	decode    func(json.RawMessage) (any, error)
	detached  atomic.Bool
	stopWatch func() bool
}

type frameMsg struct {
	frame *sse.Frame
	err   error
}

// Connection is one live transport for a resource key, shared by every
// request that joined it.
type Connection struct {
	id      string
	key     string
	started time.Time
	mgr     *Manager
	log     *logger.Logger

	ctx             context.Context
	cancelTransport context.CancelFunc

	state    atomic.Int32
	seq      atomic.Uint64
	canceled atomic.Bool

	frames chan frameMsg
	stop   chan struct{}
	done   chan struct{}
	exited chan struct{}

	mu       sync.Mutex
	subs     []*subscriber
	source   FrameSource
	closing  bool
	closed   bool
	resolved bool
	result   Result
	err      *apperrors.AppError

	closeOnce sync.Once
	release   func()
}

func newConnection(ctx context.Context, m *Manager, key string, release func()) *Connection {
	id := uuid.NewString()
	// Joined requests share the transport, so no single caller's
	// cancellation may end it. Values such as the active span carry over.
	base := context.WithoutCancel(ctx)
	spanCtx, _ := observability.StartSpan(base, observability.SpanStreamConnection,
		trace.WithAttributes(
			attribute.String(observability.AttrStreamKey, key),
			attribute.String(observability.AttrConnectionID, id),
		))
	tctx, cancel := context.WithCancel(spanCtx)

	return &Connection{
		id:      id,
		key:     key,
		started: time.Now(),
		mgr:     m,
		log: m.log.WithContext(ctx).WithFields(map[string]interface{}{
			logger.FieldStreamKey:    key,
			logger.FieldConnectionID: id,
		}),
		ctx:             tctx,
		cancelTransport: cancel,
		frames:          make(chan frameMsg, m.cfg.FrameBuffer),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
		exited:          make(chan struct{}),
		release:         release,
	}
}

// ID returns the connection's unique id.
func (c *Connection) ID() string { return c.id }

// Key returns the resource key.
func (c *Connection) Key() string { return c.key }

// StartedAt returns when the connection was opened.
func (c *Connection) StartedAt() time.Time { return c.started }

// State returns the lifecycle state.
func (c *Connection) State() ConnState { return ConnState(c.state.Load()) }

// Sequence returns the number of frames received so far.
func (c *Connection) Sequence() uint64 { return c.seq.Load() }

// Done is closed once the connection resolved, failed or was canceled.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Wait blocks until the connection resolves or ctx is done. A done ctx
// only ends this wait; the connection keeps serving other subscribers.
func (c *Connection) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		if c.err != nil {
			return Result{}, c.err
		}
		return c.result, nil
	case <-ctx.Done():
		return Result{}, canceledBy(ctx)
	}
}

func (c *Connection) live() bool {
	s := c.State()
	return s == ConnConnecting || s == ConnOpen
}

// subscribe adds a request's handlers. It reports false once the connection
// has resolved or closed, in which case the caller needs a new connection.
func (c *Connection) subscribe(ctx context.Context, req Request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved || c.closing || c.closed {
		return false
	}
	s := &subscriber{handlers: req.Handlers, decode: req.Decode}
	c.subs = append(c.subs, s)
	s.stopWatch = context.AfterFunc(ctx, func() { c.detach(s) })
	return true
}

// detach drops a subscriber whose context ended. The last one to leave
// cancels the connection, which then accepts no new subscribers.
func (c *Connection) detach(s *subscriber) {
	s.detached.Store(true)

	c.mu.Lock()
	c.subs = slices.DeleteFunc(c.subs, func(x *subscriber) bool { return x == s })
	last := len(c.subs) == 0 && !c.resolved
	if last {
		// Joiners arriving from now on need a fresh connection.
		c.closing = true
	}
	c.mu.Unlock()

	if last {
		c.log.Debug("last subscriber left; canceling stream")
		c.mgr.Cancel(c)
	}
}

func (c *Connection) subscribers() []*subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.subs)
}

// each calls fn for every attached subscriber until the connection is
// canceled.
func (c *Connection) each(fn func(*subscriber)) {
	for _, s := range c.subscribers() {
		if c.canceled.Load() {
			return
		}
		if s.detached.Load() {
			continue
		}
		fn(s)
	}
}

// run is the dispatch loop. Decoder, assembler and timers live here only.
func (c *Connection) run(t Transport, cfg Config) {
	defer close(c.exited)
	defer c.mgr.Close(c)

	go c.read(t)

	connect := time.NewTimer(cfg.ConnectTimeout)
	defer connect.Stop()
	var gap *time.Timer
	var gapC <-chan time.Time
	defer func() {
		if gap != nil {
			gap.Stop()
		}
	}()

	dec := NewDecoder(WithChunkLimit(cfg.MaxChunks))
	asm := NewAssembler(sink{c}, c.log)
	c.log.Debug("stream opening")

	for {
		select {
		case <-c.stop:
			return

		case <-connect.C:
			c.finish(Result{}, errConnectTimeout(c.key, cfg.ConnectTimeout))
			return

		case <-gapC:
			asm.Expire()
			c.log.Warn("gave up waiting for result chunks", logger.Fields(
				"missing", asm.Err().Details["missing"], "missing_count", asm.Err().Details["missing_count"],
			))
			c.finish(Result{}, asm.Err())
			return

		case msg := <-c.frames:
			if msg.err != nil {
				c.finish(Result{}, c.endOfStream(asm, msg.err))
				return
			}
			if c.State() == ConnConnecting {
				connect.Stop()
				c.state.Store(int32(ConnOpen))
				c.mgr.metrics.FirstFrame(c.ctx, time.Since(c.started))
			}
			if c.handle(dec, asm, msg.frame) {
				return
			}
			if gapC == nil && asm.AwaitingChunks() {
				gap = time.NewTimer(cfg.GapTimeout)
				gapC = gap.C
				_, count := asm.Missing()
				c.log.Debug("waiting for missing chunks", logger.Fields("missing_count", count))
			}
		}
	}
}

// handle decodes and applies one frame. It reports whether the stream ended.
func (c *Connection) handle(dec *Decoder, asm *Assembler, f *sse.Frame) bool {
	if c.canceled.Load() {
		return true
	}
	seq := c.seq.Add(1)
	log := c.log.WithFields(map[string]interface{}{logger.FieldSequence: seq})

	ev, err := dec.Decode(f)
	var derr *DecodeError
	var serr *SequenceError
	switch {
	case errors.As(err, &derr):
		c.mgr.metrics.DecodeError(c.ctx, "malformed")
		if derr.Terminal {
			log.WithError(derr).Error("terminal frame could not be decoded")
			c.finish(Result{}, errDecode(derr))
			return true
		}
		log.WithError(derr).Warn("skipping undecodable frame")
		warning := errDecode(derr)
		c.each(func(s *subscriber) {
			if s.handlers.OnWarning != nil {
				s.handlers.OnWarning(warning)
			}
		})
		return false
	case errors.As(err, &serr):
		c.mgr.metrics.DecodeError(c.ctx, "sequence")
		log.Warn("out-of-order frame", logger.Fields(
			logger.FieldEventKind, serr.Got.String(),
			"after", serr.Prev.String(),
			"reason", serr.Reason,
			"ignored", serr.Ignore,
		))
		if serr.Ignore {
			return false
		}
	}

	c.mgr.metrics.FrameDecoded(c.ctx, ev.Kind().String())
	log.Debug("frame", logger.Fields(logger.FieldEventKind, ev.Kind().String()))

	switch asm.Apply(ev) {
	case Resolve:
		c.finish(asm.Result(), nil)
		return true
	case Fail:
		c.finish(Result{}, asm.Err())
		return true
	}
	return false
}

// endOfStream maps the reader's final error to the stream's failure.
func (c *Connection) endOfStream(asm *Assembler, err error) *apperrors.AppError {
	if asm.AwaitingChunks() {
		asm.Expire()
		return asm.Err()
	}
	if errors.Is(err, io.EOF) {
		return errEndedEarly()
	}
	return errTransport(err)
}

// read opens the transport and forwards frames until the stream ends or
// the connection closes.
func (c *Connection) read(t Transport) {
	src, err := t.Open(c.ctx, c.key)
	if err != nil {
		c.deliver(frameMsg{err: err})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = src.Close()
		return
	}
	c.source = src
	c.mu.Unlock()
	defer c.closeSource()

	for {
		f, err := src.Next()
		if !c.deliver(frameMsg{frame: f, err: err}) || err != nil {
			return
		}
	}
}

func (c *Connection) deliver(msg frameMsg) bool {
	select {
	case c.frames <- msg:
		return true
	case <-c.stop:
		return false
	}
}

func (c *Connection) closeSource() {
	c.mu.Lock()
	src := c.source
	c.source = nil
	c.mu.Unlock()
	if src != nil {
		_ = src.Close()
	}
}

// finish resolves the connection exactly once and notifies subscribers,
// unless the connection was canceled.
func (c *Connection) finish(res Result, err *apperrors.AppError) {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return
	}
	c.resolved = true
	c.result, c.err = res, err
	subs := slices.Clone(c.subs)
	outcome := "resolved"
	switch {
	case err == nil:
		c.state.Store(int32(ConnClosed))
	case err.Code == apperrors.ErrCodeStreamCanceled:
		outcome = "canceled"
		c.state.Store(int32(ConnClosed))
	default:
		outcome = "failed"
		c.state.Store(int32(ConnErrored))
	}
	close(c.done)
	c.mu.Unlock()

	c.record(outcome, res, err)

	for _, s := range subs {
		if s.stopWatch != nil {
			s.stopWatch()
		}
		if c.canceled.Load() {
			continue
		}
		if s.detached.Load() {
			continue
		}
		c.notify(s, res, err)
	}
}

func (c *Connection) notify(s *subscriber, res Result, err *apperrors.AppError) {
	if err == nil && s.decode != nil {
		v, decErr := s.decode(res.Payload)
		if decErr != nil {
			err = errDeserialize(decErr)
		} else {
			res.Value = v
		}
	}
	if err != nil {
		if s.handlers.OnError != nil {
			s.handlers.OnError(err)
		}
		return
	}
	if s.handlers.OnComplete != nil {
		s.handlers.OnComplete(res)
	}
}

func (c *Connection) record(outcome string, res Result, err *apperrors.AppError) {
	duration := time.Since(c.started)
	code := ""
	if err != nil {
		code = string(err.Code)
	}
	c.mgr.metrics.StreamFinished(c.ctx, outcome, code, duration)

	observability.SetSpanAttribute(c.ctx, observability.AttrOutcome, outcome)
	if err != nil && outcome == "failed" {
		observability.SetSpanError(c.ctx, err)
	}
	trace.SpanFromContext(c.ctx).End()

	fields := logger.DurationFields(duration, logger.Fields(logger.FieldSequence, c.seq.Load()))
	switch outcome {
	case "resolved":
		fields["chunked"] = res.Chunked
		c.log.Info("stream resolved", fields)
	case "canceled":
		c.log.Debug("stream canceled", fields)
	default:
		fields["code"] = code
		fields["retryable"] = err.Retryable
		c.log.WithError(err).Warn("stream failed", fields)
	}
}

// close releases the transport. Closing a connection that has not resolved
// cancels it.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		if !c.resolved {
			c.canceled.Store(true)
		}
		c.mu.Unlock()

		close(c.stop)
		c.cancelTransport()
		c.closeSource()
		if c.release != nil {
			c.release()
		}
		c.finish(Result{}, errCanceled(nil))
	})
}

// sink forwards assembler updates to the connection's subscribers.
type sink struct{ c *Connection }

func (s sink) Progress(p Progress) {
	s.c.each(func(sub *subscriber) {
		if sub.handlers.OnProgress != nil {
			sub.handlers.OnProgress(p)
		}
	})
}

func (s sink) Partial(p Partial) {
	s.c.each(func(sub *subscriber) {
		if sub.handlers.OnPartialResult != nil {
			sub.handlers.OnPartialResult(p)
		}
	})
}
