package handler

import (
	"net/http"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/services"
	"marketplace-chat/internal/store"
	"marketplace-chat/internal/transport/httpdto"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service *services.MessageService
	store   *store.Store
}

func NewMessageHandler(service *services.MessageService, st *store.Store) *MessageHandler {
	return &MessageHandler{service: service, store: st}
}

// List returns the loaded window. The first call loads the newest page;
// ?older=true pages backwards from the cursor.
func (h *MessageHandler) List(c *gin.Context) {
	id := conversationCtx(c)
	thread := h.store.Snapshot().Thread(id)
	if !thread.Loaded || c.Query("older") == "true" {
		var err error
		if !thread.Loaded {
			_, err = h.service.LoadMessages(c.Request.Context(), id, "")
		} else {
			_, err = h.service.LoadOlder(c.Request.Context(), id)
		}
		if err != nil {
			fail(c, err)
			return
		}
		thread = h.store.Snapshot().Thread(id)
	}
	ok(c, httpdto.ThreadResponse{
		Messages: thread.Messages,
		HasMore:  thread.HasMore,
		Typing:   h.store.TypingUsers(id),
	})
}

func (h *MessageHandler) Send(c *gin.Context) {
	id := conversationCtx(c)
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	m, err := h.service.SendMessage(c.Request.Context(), services.SendInput{
		ConversationID: id,
		Content:        req.Content,
		Type:           req.Type,
		ReplyTo:        req.ReplyTo,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(m))
}

func (h *MessageHandler) Retry(c *gin.Context) {
	id := conversationCtx(c)
	m, err := h.service.RetryMessage(c.Request.Context(), id, c.Param("messageId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse(m))
}

func (h *MessageHandler) Cancel(c *gin.Context) {
	id := conversationCtx(c)
	if err := h.service.CancelMessage(id, c.Param("messageId")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Update edits a message locally; read messages keep their content.
func (h *MessageHandler) Update(c *gin.Context) {
	id := conversationCtx(c)
	var req httpdto.UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	msgID := c.Param("messageId")
	if _, found := h.store.Snapshot().Message(id, msgID); !found {
		fail(c, chat_errors.ErrNotFound)
		return
	}
	h.service.UpdateMessage(id, msgID, message.Patch{Content: req.Content, Status: req.Status})
	m, _ := h.store.Snapshot().Message(id, msgID)
	ok(c, m)
}

func (h *MessageHandler) React(c *gin.Context) {
	id := conversationCtx(c)
	var req httpdto.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "emoji is required")
		return
	}
	added, err := h.service.ToggleReaction(c.Request.Context(), id, c.Param("messageId"), req.Emoji)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, httpdto.ReactionResponse{Added: added})
}
