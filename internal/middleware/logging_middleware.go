package middleware

import (
	"time"

	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestRecorder receives one observation per handled request.
type RequestRecorder interface {
	HTTPRequest(method, route string, status int, elapsed time.Duration)
}

func LoggingMiddleware(l *logger.Logger, rec RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		log := l
		if log == nil {
			log = logger.GetGlobalLogger()
		}
		if log != nil {
			log.Infof("%s %s %d %s", method, path, status, latency.String())
		}
		if rec != nil {
			route := c.FullPath()
			if route == "" {
				route = "unmatched"
			}
			rec.HTTPRequest(method, route, status, latency)
		}
	}
}
