package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"paname-consulting/backend/pkg/metrics"
)

// Metrics 按路由模板记录请求数与耗时，未匹配的路径统一记为 unmatched 以控制标签基数
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
