package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/collegeportal/portal-api/internal/service"
)

// Metrics records one observation per finished request, labeled by the route
// template so /circulars/:id stays one series. The SSE stream endpoint is
// excluded; its "latency" is the connection lifetime and would drown the
// request histogram.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if strings.HasSuffix(path, "/stream") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
