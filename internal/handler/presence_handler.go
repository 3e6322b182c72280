package handler

import (
	"marketplace-chat/internal/presence"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	tracker *presence.Tracker
}

func NewPresenceHandler(t *presence.Tracker) *PresenceHandler {
	return &PresenceHandler{tracker: t}
}

func (h *PresenceHandler) List(c *gin.Context) {
	if c.Query("online") == "true" {
		ok(c, h.tracker.Online())
		return
	}
	ok(c, h.tracker.Snapshot())
}

func (h *PresenceHandler) Get(c *gin.Context) {
	e, found := h.tracker.Get(c.Param("userId"))
	if !found {
		fail(c, chat_errors.ErrNotFound)
		return
	}
	ok(c, e)
}
