package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grademonitor-api/internal/service"
)

// UnmatchedRoute labels requests that hit no registered route, so unknown
// session ids cannot grow the label set.
const UnmatchedRoute = "unmatched"

// Metrics times every request under its route template (/monitor/sessions/:id,
// never the concrete id). Routes listed in skip, typically the scrape and
// health endpoints, are not recorded.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, route := range skip {
		skipped[route] = struct{}{}
	}

	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skipped[route]; ok && route != "" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		if route == "" {
			route = UnmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
