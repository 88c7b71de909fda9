package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kbukum/lexstream/httpclient/sse"
	"github.com/kbukum/lexstream/stream/wire"
)

// DecodeError reports a frame that could not be turned into an Event.
type DecodeError struct {
	// Event is the frame's event name as received.
	Event  string
	Reason string
	// Terminal is set when the frame would have ended the stream.
	Terminal bool
	// Limit is set when a well-formed frame exceeded a decoder limit. Such
	// frames always end the stream.
	Limit bool
	Err   error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("stream: decode %q frame: %s", e.Event, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SequenceError flags an event that arrived out of protocol order. The event
// is still returned; Ignore tells the caller to drop it.
type SequenceError struct {
	Prev   Kind
	Got    Kind
	Reason string
	Ignore bool
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("stream: %s after %s: %s", e.Got, e.Prev, e.Reason)
}

// Decoder classifies frames of one connection and tracks their order.
// It is not safe for concurrent use.
type Decoder struct {
	maxChunks    int
	last         Kind
	finished     bool
	awaiting     bool
	sawProgress  bool
	sawStart     bool
	chunkIndexes map[int]struct{}
}

// DecoderOption customizes a Decoder.
type DecoderOption func(*Decoder)

// WithChunkLimit bounds chunk indexes and announced chunk counts. Frames
// beyond n fail the stream. n <= 0 keeps DefaultMaxChunks.
func WithChunkLimit(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxChunks = n
		}
	}
}

// NewDecoder returns a decoder for a fresh connection.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{maxChunks: DefaultMaxChunks, chunkIndexes: make(map[int]struct{})}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode parses f. A *DecodeError comes back with a nil Event; a
// *SequenceError comes back together with the decoded Event.
func (d *Decoder) Decode(f *sse.Frame) (Event, error) {
	ev, derr := parseFrame(f)
	if derr != nil {
		return nil, derr
	}
	if derr := d.checkLimits(f.Event, ev); derr != nil {
		return nil, derr
	}

	seqErr := d.check(ev)
	if seqErr != nil && seqErr.Ignore {
		return ev, seqErr
	}
	d.observe(ev)
	if seqErr != nil {
		return ev, seqErr
	}
	return ev, nil
}

// Last returns the kind of the last accepted event.
func (d *Decoder) Last() Kind { return d.last }

func (d *Decoder) checkLimits(name string, ev Event) *DecodeError {
	over := func(what string, n int) *DecodeError {
		return &DecodeError{
			Event:    name,
			Reason:   fmt.Sprintf("%s %d exceeds the limit of %d chunks", what, n, d.maxChunks),
			Terminal: true,
			Limit:    true,
		}
	}
	switch e := ev.(type) {
	case ChunkEvent:
		if e.Index >= d.maxChunks {
			return over("chunk index", e.Index)
		}
	case CompletionStartEvent:
		if e.TotalChunks > d.maxChunks {
			return over("total_chunks", e.TotalChunks)
		}
	}
	return nil
}

func (d *Decoder) check(ev Event) *SequenceError {
	seq := func(reason string, ignore bool) *SequenceError {
		return &SequenceError{Prev: d.last, Got: ev.Kind(), Reason: reason, Ignore: ignore}
	}

	if d.finished {
		return seq("stream already terminated", true)
	}
	if d.awaiting {
		switch ev.(type) {
		case ChunkEvent, ErrorEvent:
		default:
			return seq("only chunks may follow a chunked completion", true)
		}
	}

	switch e := ev.(type) {
	case ConfigEvent:
		if d.sawProgress || len(d.chunkIndexes) > 0 {
			return seq("config after progress", false)
		}
	case CompletionStartEvent:
		if d.sawStart {
			return seq("duplicate completion_start", false)
		}
		if len(d.chunkIndexes) > 0 {
			return seq("completion_start after chunks", false)
		}
	case ChunkEvent:
		if _, dup := d.chunkIndexes[e.Index]; dup {
			return seq(fmt.Sprintf("duplicate chunk index %d", e.Index), false)
		}
	case ProgressEvent:
		if len(d.chunkIndexes) > 0 {
			return seq("progress after chunks", false)
		}
	}
	return nil
}

func (d *Decoder) observe(ev Event) {
	d.last = ev.Kind()
	if terminal(ev) {
		d.finished = true
		return
	}
	switch e := ev.(type) {
	case ProgressEvent:
		d.sawProgress = true
	case CompletionStartEvent:
		d.sawStart = true
	case ChunkEvent:
		d.chunkIndexes[e.Index] = struct{}{}
	case CompleteEvent:
		// Chunks may still be in flight behind a payload-less complete.
		d.awaiting = true
	}
}

func parseFrame(f *sse.Frame) (Event, *DecodeError) {
	fail := func(reason string, err error) *DecodeError {
		return &DecodeError{
			Event:    f.Event,
			Reason:   reason,
			Terminal: terminalName(f.Event),
			Err:      err,
		}
	}
	data := []byte(f.Data)

	switch f.Event {
	case wire.EventConfig:
		var p wire.Config
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fail("malformed payload", err)
		}
		if reason := checkWeights(p.Weights); reason != "" {
			return nil, fail(reason, nil)
		}
		return ConfigEvent{Weights: p.Weights}, nil

	case wire.EventProgress, "":
		if f.Event == "" && !hasStage(data) {
			return nil, fail("unnamed frame without stage", nil)
		}
		var p wire.Progress
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fail("malformed payload", err)
		}
		if p.Stage == "" {
			return nil, fail("missing stage", nil)
		}
		if math.IsNaN(p.Progress) || p.Progress < 0 || p.Progress > 1 {
			return nil, fail(fmt.Sprintf("progress %v out of range", p.Progress), nil)
		}
		return ProgressEvent{Stage: p.Stage, Progress: p.Progress, Message: p.Message, Details: p.Details}, nil

	case wire.EventCompletionStart:
		var p wire.CompletionStart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fail("malformed payload", err)
		}
		if p.TotalChunks < 1 {
			return nil, fail("total_chunks must be positive", nil)
		}
		return CompletionStartEvent{TotalChunks: p.TotalChunks, TotalBytes: p.TotalBytes}, nil

	case wire.EventCompletionChunk:
		var p wire.Chunk
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fail("malformed payload", err)
		}
		if p.Index < 0 {
			return nil, fail("negative chunk index", nil)
		}
		return ChunkEvent{Index: p.Index, Data: p.Data, IsLast: p.IsLast}, nil

	case wire.EventComplete:
		if len(bytes.TrimSpace(data)) == 0 {
			return CompleteEvent{}, nil
		}
		var p wire.Complete
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fail("malformed payload", err)
		}
		payload := p.Result
		if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
			payload = nil
		}
		return CompleteEvent{Payload: payload}, nil

	case wire.EventError:
		var p wire.Error
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fail("malformed payload", err)
		}
		if p.Code == "" {
			p.Code = "UNKNOWN"
		}
		return ErrorEvent{Code: p.Code, Message: p.Message, Retryable: p.Retryable}, nil
	}

	return nil, fail("unknown event", nil)
}

func hasStage(data []byte) bool {
	var shape struct {
		Stage *string `json:"stage"`
	}
	return json.Unmarshal(data, &shape) == nil && shape.Stage != nil
}

func checkWeights(w map[string]float64) string {
	if len(w) == 0 {
		return "no stage weights"
	}
	var sum float64
	for stage, v := range w {
		if math.IsNaN(v) || v < 0 {
			return fmt.Sprintf("invalid weight for stage %q", stage)
		}
		sum += v
	}
	if sum == 0 {
		return "stage weights sum to zero"
	}
	return ""
}
