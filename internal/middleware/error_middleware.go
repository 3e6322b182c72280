package middleware

import (
	"marketplace-chat/internal/transport/httpdto"
	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler renders the last error attached with c.Error, mapping the
// error taxonomy onto an HTTP status.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := httpdto.StatusFor(err)
		if l != nil && status >= 500 {
			l.ErrorCtx(c.Request.Context(), "request error: "+err.Error())
		}
		c.JSON(status, httpdto.NewErrorFromErr(err))
	}
}
