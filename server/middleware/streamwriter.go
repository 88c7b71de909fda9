package middleware

import (
	"net/http"
	"strings"
)

// streamWriter records what a handler sent for the request log. Event
// streams flush once per frame batch, so flushes approximates frames.
type streamWriter struct {
	http.ResponseWriter
	status  int
	bytes   int64
	flushes int
	started bool
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	return &streamWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *streamWriter) WriteHeader(code int) {
	if !w.started {
		w.status, w.started = code, true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *streamWriter) Write(b []byte) (int, error) {
	w.started = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Flush keeps SSE delivery working through the middleware chain.
func (w *streamWriter) Flush() {
	w.started = true
	w.flushes++
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *streamWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *streamWriter) eventStream() bool {
	return strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream")
}
