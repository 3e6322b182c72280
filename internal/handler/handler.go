// Package handler exposes the chat engine to the UI over HTTP.
package handler

import (
	"net/http"

	"marketplace-chat/internal/transport/httpdto"
	"marketplace-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// fail hands err to middleware.ErrorHandler, which picks the status.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, "INVALID_REQUEST"))
}

func ok[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(data))
}

// conversationCtx tags the request context with the :id path parameter.
func conversationCtx(c *gin.Context) string {
	id := c.Param("id")
	c.Request = c.Request.WithContext(logger.WithConversation(c.Request.Context(), id))
	return id
}
