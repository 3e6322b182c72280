package handler

import (
	"fmt"
	"net/http"

	"marketplace-chat/internal/api"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/services"
	"marketplace-chat/internal/store"
	"marketplace-chat/internal/transport/httpdto"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	service *services.ConversationService
	store   *store.Store
}

func NewConversationHandler(service *services.ConversationService, st *store.Store) *ConversationHandler {
	return &ConversationHandler{service: service, store: st}
}

// List serves the filtered list from the store; ?refresh=true fetches it first.
func (h *ConversationHandler) List(c *gin.Context) {
	var f conversation.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, "invalid filter")
		return
	}
	if f.Type != "" && !f.Type.Valid() {
		badRequest(c, "invalid conversation type")
		return
	}

	list := h.service.ListConversations(f)
	if c.Query("refresh") == "true" {
		fetched, err := h.service.LoadConversations(c.Request.Context(), f)
		if err != nil {
			fail(c, err)
			return
		}
		list = fetched
	}
	ok(c, httpdto.ListConversationsResponse{
		Conversations: list,
		TotalUnread:   h.store.Snapshot().TotalUnread(),
	})
}

func (h *ConversationHandler) Get(c *gin.Context) {
	conv, found := h.store.Snapshot().Conversation(conversationCtx(c))
	if !found {
		fail(c, chat_errors.ErrNotFound)
		return
	}
	ok(c, conv)
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	conv, err := h.service.Create(c.Request.Context(), api.CreateConversationInput{
		Name:         req.Name,
		Type:         conversation.Type(req.Type),
		Participants: req.Participants,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(conv))
}

// Open makes the conversation active, which suppresses unread counting, and
// marks it read.
func (h *ConversationHandler) Open(c *gin.Context) {
	id := conversationCtx(c)
	if _, found := h.store.Snapshot().Conversation(id); !found {
		fail(c, chat_errors.ErrNotFound)
		return
	}
	h.service.SetActive(id)
	if err := h.service.MarkAsRead(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	conv, _ := h.store.Snapshot().Conversation(id)
	ok(c, conv)
}

func (h *ConversationHandler) Close(c *gin.Context) {
	if h.store.Snapshot().ActiveConversation == conversationCtx(c) {
		h.service.SetActive("")
	}
	c.Status(http.StatusNoContent)
}

func (h *ConversationHandler) MarkRead(c *gin.Context) {
	id := conversationCtx(c)
	if err := h.service.MarkAsRead(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Update applies the flags present in the body in pinned, muted, archived
// order. If one fails, the flags already applied by this request are set back.
func (h *ConversationHandler) Update(c *gin.Context) {
	id := conversationCtx(c)
	var req httpdto.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	flags := req.Flags()
	if len(flags) == 0 {
		badRequest(c, "no flag to update")
		return
	}
	before, found := h.store.Snapshot().Conversation(id)
	if !found {
		fail(c, chat_errors.ErrNotFound)
		return
	}
	var applied []conversation.Flag
	for _, f := range []conversation.Flag{conversation.FlagPinned, conversation.FlagMuted, conversation.FlagArchived} {
		v, set := flags[f]
		if !set {
			continue
		}
		if err := h.service.SetFlag(c.Request.Context(), id, f, v); err != nil {
			for i := len(applied) - 1; i >= 0; i-- {
				prev := applied[i]
				if rbErr := h.service.SetFlag(c.Request.Context(), id, prev, before.Get(prev)); rbErr != nil {
					_ = c.Error(fmt.Errorf("restore %s: %w", prev, rbErr))
				}
			}
			fail(c, err)
			return
		}
		applied = append(applied, f)
	}
	conv, _ := h.store.Snapshot().Conversation(id)
	ok(c, conv)
}
