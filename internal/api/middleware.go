package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terrasiaga/coordination/internal/metrics"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.RequestDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}
}
