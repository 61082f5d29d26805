package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-llm/internal/metrics"
)

// metricsMiddleware registra contador y latencia por ruta. Usa la ruta
// registrada (/api/sessions/:id) para no crear una serie por id.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path,
		).Observe(time.Since(start).Seconds())
	}
}
