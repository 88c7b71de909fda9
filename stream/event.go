package stream

import (
	"encoding/json"

	"github.com/kbukum/lexstream/stream/wire"
)

// Kind identifies an Event variant.
type Kind int

const (
	KindConfig Kind = iota + 1
	KindProgress
	KindCompletionStart
	KindChunk
	KindComplete
	KindError
)

var kindNames = map[Kind]string{
	KindConfig:          wire.EventConfig,
	KindProgress:        wire.EventProgress,
	KindCompletionStart: wire.EventCompletionStart,
	KindChunk:           wire.EventCompletionChunk,
	KindComplete:        wire.EventComplete,
	KindError:           wire.EventError,
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "none"
}

// Event is a decoded stream frame. The set of implementations is closed;
// switch on the concrete type.
type Event interface {
	Kind() Kind
	event()
}

// ConfigEvent declares stage weights used to normalize progress.
type ConfigEvent struct {
	Weights map[string]float64
}

// ProgressEvent reports progress within one stage, in [0,1].
type ProgressEvent struct {
	Stage    string
	Progress float64
	Message  string
	Details  map[string]any
}

// CompletionStartEvent announces how many chunks the result will span.
type CompletionStartEvent struct {
	TotalChunks int
	TotalBytes  int
}

// ChunkEvent is one fragment of a chunked result.
type ChunkEvent struct {
	Index  int
	Data   string
	IsLast bool
}

// CompleteEvent ends the stream. Payload is nil when the result was chunked.
type CompleteEvent struct {
	Payload json.RawMessage
}

// ErrorEvent ends the stream with a backend error.
type ErrorEvent struct {
	Code      string
	Message   string
	Retryable bool
}

func (ConfigEvent) Kind() Kind          { return KindConfig }
func (ProgressEvent) Kind() Kind        { return KindProgress }
func (CompletionStartEvent) Kind() Kind { return KindCompletionStart }
func (ChunkEvent) Kind() Kind           { return KindChunk }
func (CompleteEvent) Kind() Kind        { return KindComplete }
func (ErrorEvent) Kind() Kind           { return KindError }

func (ConfigEvent) event()          {}
func (ProgressEvent) event()        {}
func (CompletionStartEvent) event() {}
func (ChunkEvent) event()           {}
func (CompleteEvent) event()        {}
func (ErrorEvent) event()           {}

// terminal reports whether ev ends the stream on its own.
func terminal(ev Event) bool {
	switch e := ev.(type) {
	case ErrorEvent:
		return true
	case CompleteEvent:
		return len(e.Payload) > 0
	}
	return false
}

// terminalName reports whether a frame with the given event name is meant
// to end the stream, even when its payload cannot be decoded.
func terminalName(name string) bool {
	return name == wire.EventComplete || name == wire.EventError
}
