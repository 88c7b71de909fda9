// Package sse reads Server-Sent Events frames from an HTTP response body.
package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// MaxFrameSize bounds a single line. Chunked completions keep frames far
// below this; anything larger is treated as a broken stream.
const MaxFrameSize = 1 << 20

// Frame is one dispatched server-sent event.
type Frame struct {
	// Event is the event name from "event:" lines. Empty for unnamed frames.
	Event string
	// Data is the payload; multiple "data:" lines are joined with "\n".
	Data string
	// ID is the last event ID seen on the stream, carried forward per the
	// EventSource rules.
	ID string
	// Retry is the reconnection delay the server asked for, zero if unset.
	Retry time.Duration
}

// Reader reads frames from a stream.
type Reader interface {
	// Next returns the next frame. It returns io.EOF when the stream ends on a
	// frame boundary and io.ErrUnexpectedEOF when it ends mid-frame.
	Next() (*Frame, error)
	// Close releases the underlying body.
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
	lastID  string
}

// NewReader creates a frame reader over body.
func NewReader(body io.ReadCloser) Reader {
	s := bufio.NewScanner(body)
	s.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)
	return &reader{scanner: s, body: body}
}

func (r *reader) Next() (*Frame, error) {
	frame := Frame{}
	var dataLines []string
	var pending bool

	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if dataLines != nil {
				frame.Data = strings.Join(dataLines, "\n")
				frame.ID = r.lastID
				return &frame, nil
			}
			// A blank line without data resets the frame without dispatching.
			frame = Frame{}
			pending = false
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		pending = true
		field, value := parseLine(line)
		switch field {
		case "data":
			dataLines = append(dataLines, value)
		case "event":
			frame.Event = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				frame.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if pending {
		return nil, io.ErrUnexpectedEOF
	}
	return nil, io.EOF
}

func (r *reader) Close() error {
	return r.body.Close()
}

// parseLine splits "field: value", dropping one leading space from value.
func parseLine(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
