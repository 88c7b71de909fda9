package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lexstream/component"
)

// Readiness reports whether the service should receive traffic. A degraded
// stream manager still accepts lookups; only unhealthy components fail it.
func Readiness(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ready"
		httpStatus := http.StatusOK

		if checker != nil && overall(checker(c.Request.Context())) == component.StatusUnhealthy {
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":    status,
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Liveness answers while the process can serve HTTP. It never consults
// components: a failing lookup backend degrades readiness, not liveness.
func Liveness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "alive")
	}
}
