package middleware

import (
	"time"

	"taskmanager/internal/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records every request under its route template so path
// parameters do not explode label cardinality.
func MetricsMiddleware(rec metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.RecordRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
