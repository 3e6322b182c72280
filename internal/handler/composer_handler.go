package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"marketplace-chat/internal/composer"
	"marketplace-chat/internal/storage"
	"marketplace-chat/internal/transport/httpdto"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ComposerHandler struct {
	composer *composer.Composer
	maxBytes int64
}

func NewComposerHandler(c *composer.Composer, maxBytes int64) *ComposerHandler {
	return &ComposerHandler{composer: c, maxBytes: maxBytes}
}

func (h *ComposerHandler) Get(c *gin.Context) {
	ok(c, h.composer.Draft(conversationCtx(c)))
}

func (h *ComposerHandler) SetContent(c *gin.Context) {
	id := conversationCtx(c)
	var req httpdto.SetContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	h.composer.SetContent(id, req.Content)
	ok(c, h.composer.Draft(id))
}

func (h *ComposerHandler) SetReplyTo(c *gin.Context) {
	id := conversationCtx(c)
	var req httpdto.ReplyToRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	h.composer.SetReplyTo(id, req.MessageID)
	ok(c, h.composer.Draft(id))
}

// AddAttachment accepts a multipart "file" field. The content is buffered
// because the upload outlives the request.
func (h *ComposerHandler) AddAttachment(c *gin.Context) {
	id := conversationCtx(c)
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		fail(c, fmt.Errorf("%w: %s is %d bytes", chat_errors.ErrAttachmentTooLarge, fh.Filename, fh.Size))
		return
	}
	src, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable file")
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		badRequest(c, "unreadable file")
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	att, err := h.composer.AddAttachment(id, storage.File{
		Name:        fh.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(att))
}

func (h *ComposerHandler) RemoveAttachment(c *gin.Context) {
	if err := h.composer.RemoveAttachment(conversationCtx(c), c.Param("attachmentId")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ComposerHandler) RetryAttachment(c *gin.Context) {
	id := conversationCtx(c)
	if err := h.composer.RetryAttachment(id, c.Param("attachmentId")); err != nil {
		fail(c, err)
		return
	}
	ok(c, h.composer.Draft(id))
}

func (h *ComposerHandler) Send(c *gin.Context) {
	id := conversationCtx(c)
	m, err := h.composer.Send(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(m))
}

// Leave is called when the user switches away from the conversation.
func (h *ComposerHandler) Leave(c *gin.Context) {
	h.composer.Leave(conversationCtx(c))
	c.Status(http.StatusNoContent)
}
