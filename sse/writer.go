package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("sse: streaming not supported")

// Writer writes Server-Sent Events frames to an HTTP response. It is safe
// for concurrent use; each frame is written and flushed atomically.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	frames  int
	err     error
}

// NewWriter prepares w for streaming: it disables the write deadline, sets
// the event-stream headers and writes the status line.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	// Streams outlive the server's WriteTimeout. Writers that do not support
	// deadlines (httptest recorders) are fine without it.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// Event writes one frame. data is JSON-encoded unless it is a string or
// []byte; multi-line data is split into several data lines. An empty id is
// omitted.
func (sw *Writer) Event(name, id string, data any) error {
	payload, err := encode(data)
	if err != nil {
		return fmt.Errorf("sse: encode %s: %w", name, err)
	}

	var buf bytes.Buffer
	if name != "" {
		writeField(&buf, "event", name)
	}
	if id != "" {
		writeField(&buf, "id", id)
	}
	for _, line := range strings.Split(string(payload), "\n") {
		writeField(&buf, "data", line)
	}
	buf.WriteByte('\n')
	return sw.write(buf.Bytes(), true)
}

// Retry tells the client how long to wait before reconnecting.
func (sw *Writer) Retry(d time.Duration) error {
	return sw.write([]byte("retry: "+strconv.FormatInt(d.Milliseconds(), 10)+"\n\n"), false)
}

// Comment writes a comment line, used as keep-alive.
func (sw *Writer) Comment(text string) error {
	return sw.write([]byte(": "+text+"\n\n"), false)
}

// KeepAlive writes a comment every interval until the returned stop func is
// called. Proxies drop idle streams; slow lookup stages stay below their timeout.
func (sw *Writer) KeepAlive(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case t := <-ticker.C:
				if sw.Comment("keepalive "+strconv.FormatInt(t.Unix(), 10)) != nil {
					return
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// Frames returns the number of event frames written so far.
func (sw *Writer) Frames() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.frames
}

func (sw *Writer) write(p []byte, frame bool) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.err != nil {
		return sw.err
	}
	if _, err := sw.w.Write(p); err != nil {
		sw.err = fmt.Errorf("sse: write: %w", err)
		return sw.err
	}
	sw.flusher.Flush()
	if frame {
		sw.frames++
	}
	return nil
}

func writeField(buf *bytes.Buffer, field, value string) {
	buf.WriteString(field)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteByte('\n')
}

func encode(data any) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
