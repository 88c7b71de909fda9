package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lexstream/observability"
)

// Metrics reports the stream and lookup counters recorded by m. Each open
// SSE stream holds goroutines, so their count is reported alongside.
// A nil m reports zero counts.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := m.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
			"streams":    snap.Streams,
			"lookups":    snap.Lookups,
		})
	}
}
