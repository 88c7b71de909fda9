package lookupd

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/lexstream/dictionary"
	apperrors "github.com/kbukum/lexstream/errors"
	"github.com/kbukum/lexstream/logger"
	"github.com/kbukum/lexstream/observability"
	"github.com/kbukum/lexstream/server"
	"github.com/kbukum/lexstream/sse"
	"github.com/kbukum/lexstream/stream/wire"
)

// Outcomes recorded on the lookup span and metrics.
const (
	OutcomeResolved = "resolved"
	OutcomeNotFound = "not_found"
	OutcomeCanceled = "canceled"
	OutcomeFailed   = "failed"
)

// Handler serves lookup streams from a dictionary store.
type Handler struct {
	store   *dictionary.Store
	cfg     Config
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Handler) { h.log = l.WithComponent("lookupd") }
}

// WithMetrics records lookup metrics. Nil disables them.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates a handler serving from store.
func NewHandler(store *dictionary.Store, cfg Config, opts ...Option) *Handler {
	cfg.ApplyDefaults()
	h := &Handler{store: store, cfg: cfg, log: logger.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the stream endpoint and the word listing under r. mw runs
// before both handlers.
func (h *Handler) Register(r gin.IRouter, mw ...gin.HandlerFunc) {
	r.GET(h.cfg.Path, append(slices.Clone(mw), h.Stream)...)
	r.GET(h.WordsPath(), append(slices.Clone(mw), h.Words)...)
}

// WordsPath is the word listing's path, a sibling of the stream path.
func (h *Handler) WordsPath() string {
	return path.Join(path.Dir(h.cfg.Path), "words")
}

// Words lists the known words.
func (h *Handler) Words(c *gin.Context) {
	server.RespondOK(c, h.store.Words())
}

// Stream serves GET ?word= as an event stream.
func (h *Handler) Stream(c *gin.Context) {
	word := c.Query("word")
	if err := validateWord(word, h.cfg.MaxWordLength); err != nil {
		server.RespondWithError(c, err)
		return
	}

	ctx, op := observability.StartOperation(c.Request.Context(), h.metrics, observability.SpanLookupServe,
		attribute.String(observability.AttrStreamKey, word))

	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		op.End(ctx, OutcomeFailed, err)
		server.RespondWithError(c, apperrors.Internal(err))
		return
	}
	stop := w.KeepAlive(h.cfg.KeepAlive)
	defer stop()

	if h.cfg.RetryHint > 0 {
		_ = w.Retry(h.cfg.RetryHint)
	}

	s := &session{w: w, cfg: &h.cfg, op: op}
	outcome, err := s.serve(ctx, h.store, word)
	op.End(ctx, outcome, err)

	fields := logger.DurationFields(op.Duration(), logger.Fields(
		logger.FieldStreamKey, word,
		"outcome", outcome,
		"frames", w.Frames(),
	))
	switch {
	case err != nil && outcome != OutcomeCanceled:
		h.log.WithError(err).Warn("lookup stream failed", fields)
	default:
		h.log.Debug("lookup stream finished", fields)
	}
}

func validateWord(word string, maxLen int) error {
	if word == "" {
		return apperrors.MissingField("word")
	}
	if len(word) > maxLen {
		return apperrors.InvalidInput("word", fmt.Sprintf("must be at most %d bytes", maxLen))
	}
	return nil
}

// session writes one lookup's frames.
type session struct {
	w   *sse.Writer
	cfg *Config
	op  *observability.Operation
	seq int
}

func (s *session) send(name string, data any) error {
	s.seq++
	return s.w.Event(name, strconv.Itoa(s.seq), data)
}

func (s *session) serve(ctx context.Context, store *dictionary.Store, word string) (string, error) {
	if err := s.send(wire.EventConfig, wire.Config{Weights: s.cfg.Weights}); err != nil {
		return OutcomeFailed, err
	}
	if err := s.stage(ctx, StageSearch, "Searching for "+strconv.Quote(word)); err != nil {
		return outcomeOf(ctx), err
	}

	entry, err := store.Lookup(ctx, word)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCanceled, err
		}
		appErr := apperrors.Wrap(err)
		if sendErr := s.send(wire.EventError, wire.Error{
			Code:      string(appErr.Code),
			Message:   appErr.Message,
			Retryable: appErr.Retryable,
		}); sendErr != nil {
			return OutcomeFailed, sendErr
		}
		if appErr.Code == dictionary.ErrCodeWordNotFound {
			return OutcomeNotFound, nil
		}
		return OutcomeFailed, err
	}

	if err := s.stage(ctx, StageSynthesize, "Assembling entry"); err != nil {
		return outcomeOf(ctx), err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		_ = s.send(wire.EventError, wire.Error{Code: string(apperrors.ErrCodeInternal), Message: "Could not encode entry."})
		return OutcomeFailed, err
	}
	if len(payload) <= s.cfg.ChunkSize {
		return OutcomeResolved, s.send(wire.EventComplete, wire.Complete{Result: payload})
	}
	return OutcomeResolved, s.chunked(payload)
}

// stage reports Steps progress events for one stage, pausing StageDelay
// before each.
func (s *session) stage(ctx context.Context, name, message string) error {
	for i := 1; i <= s.cfg.Steps; i++ {
		if err := sleep(ctx, s.cfg.StageDelay); err != nil {
			return err
		}
		p := wire.Progress{
			Stage:    name,
			Progress: float64(i) / float64(s.cfg.Steps),
			Message:  message,
			Details:  map[string]any{"step": i, "steps": s.cfg.Steps},
		}
		if err := s.send(wire.EventProgress, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) chunked(payload []byte) error {
	s.op.MarkChunked()
	parts := split(string(payload), s.cfg.ChunkSize)
	start := wire.CompletionStart{TotalChunks: len(parts), TotalBytes: len(payload)}
	if err := s.send(wire.EventCompletionStart, start); err != nil {
		return err
	}
	for i, part := range parts {
		chunk := wire.Chunk{Index: i, Data: part, IsLast: i == len(parts)-1}
		if err := s.send(wire.EventCompletionChunk, chunk); err != nil {
			return err
		}
	}
	return s.send(wire.EventComplete, wire.Complete{})
}

func outcomeOf(ctx context.Context) string {
	if ctx.Err() != nil {
		return OutcomeCanceled
	}
	return OutcomeFailed
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
