package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/lexstream/logger"
)

var quietPaths = map[string]bool{
	"/health": true, "/ready": true, "/alive": true, "/metrics": true,
}

// RequestLogger returns middleware that logs every request with method,
// path, status code, bytes sent and duration. Health check paths are
// skipped. For SSE responses the duration is the lifetime of the stream
// and the log carries the flush count.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStreamWriter(w)
			next.ServeHTTP(sw, r)

			fields := logger.DurationFields(time.Since(start), logger.Fields(
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.bytes,
			))
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields[logger.FieldRequestID] = id
			}
			if sw.eventStream() {
				fields["stream"] = true
				fields["flushes"] = sw.flushes
			}

			switch {
			case sw.status >= 500:
				log.Error("Request completed", fields)
			case sw.status >= 400:
				log.Warn("Request completed", fields)
			default:
				log.Debug("Request completed", fields)
			}
		})
	}
}
