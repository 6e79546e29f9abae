package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/jamfops/internal/metrics"
)

// Metrics records the status and latency of every request. Requests are
// keyed by route pattern so path parameters do not explode the series.
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		collector.RecordHTTPRequest(path, c.Writer.Status(), time.Since(start))
	}
}
