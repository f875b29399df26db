package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Proton-105/inovabank/pkg/metrics"
)

// Metrics measures execution time and status per route, reporting them to Prometheus.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		metrics.RecordRequest(c.FullPath(), c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
