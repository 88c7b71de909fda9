package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/kbukum/lexstream/logger"
	"github.com/kbukum/lexstream/validation"
)

// HeaderRequestID is the header carrying the request ID in both directions.
const HeaderRequestID = "X-Request-Id"

// RequestID ensures every request carries an X-Request-Id, echoes it on the
// response and stores it in the request context for logger.WithContext.
// Incoming IDs that are not UUIDs are replaced so they cannot smuggle text
// into the logs.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if validation.New().RequiredUUID(HeaderRequestID, id).HasErrors() {
				id = uuid.NewString()
				r.Header.Set(HeaderRequestID, id)
			}
			w.Header().Set(HeaderRequestID, id)
			next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
		})
	}
}
