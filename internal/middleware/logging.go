package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linearcast/playout/internal/logging"
	"github.com/linearcast/playout/internal/metrics"
)

// Logger middleware logs request details and records HTTP metrics
func Logger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		log.LogHTTPRequest(c.Request.Method, path, c.ClientIP(), status, duration)

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration.Seconds())
	}
}
