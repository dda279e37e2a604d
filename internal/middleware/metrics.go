package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/service"
)

// Metrics records per-request timing and status against the registered route
// template, falling back to the raw path for unmatched requests.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
