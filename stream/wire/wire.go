// Package wire defines the lookup stream's event names and JSON payloads.
// The stream client decodes them and the lookup backend encodes them.
package wire

import "encoding/json"

// Event names carried on the SSE "event:" line.
const (
	EventConfig          = "config"
	EventProgress        = "progress"
	EventCompletionStart = "completion_start"
	EventCompletionChunk = "completion_chunk"
	EventComplete        = "complete"
	EventError           = "error"
)

// Config declares the relative weight of each stage.
type Config struct {
	Weights map[string]float64 `json:"weights"`
}

// Progress reports progress within one stage.
type Progress struct {
	Stage    string         `json:"stage"`
	Progress float64        `json:"progress"`
	Message  string         `json:"message,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// CompletionStart announces a chunked completion.
type CompletionStart struct {
	TotalChunks int `json:"total_chunks"`
	TotalBytes  int `json:"total_bytes,omitempty"`
}

// Chunk carries one fragment of a chunked completion.
type Chunk struct {
	Index  int    `json:"index"`
	Data   string `json:"data"`
	IsLast bool   `json:"is_last"`
}

// Complete ends a stream. Result is absent when it was sent in chunks.
type Complete struct {
	Result json.RawMessage `json:"result,omitempty"`
}

// Error ends a stream with a backend failure.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
