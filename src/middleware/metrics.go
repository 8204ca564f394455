package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/localagent/agentblog/src/telemetry"
)

// MetricsMiddleware records request count and latency per route template.
// Register it after RequestIDMiddleware.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// unmatched routes share one label value
		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
