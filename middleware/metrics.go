package middleware

import (
	"strconv"
	"time"

	"chatpdf-backend/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// RequestMetrics records a counter and a latency histogram per request,
// labeled by method, route and status.
func RequestMetrics(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			// Unregistered routes would explode label cardinality
			path = "unmatched"
		}

		metrics.RecordRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}
