package httpdto

import (
	"marketplace-chat/internal/domain/conversation"
)

type CreateConversationRequest struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Participants []string `json:"participants" binding:"required,min=1"`
}

// UpdateConversationRequest sets any subset of the flags.
type UpdateConversationRequest struct {
	Pinned   *bool `json:"pinned"`
	Muted    *bool `json:"muted"`
	Archived *bool `json:"archived"`
}

func (r UpdateConversationRequest) Flags() map[conversation.Flag]bool {
	out := make(map[conversation.Flag]bool, 3)
	if r.Pinned != nil {
		out[conversation.FlagPinned] = *r.Pinned
	}
	if r.Muted != nil {
		out[conversation.FlagMuted] = *r.Muted
	}
	if r.Archived != nil {
		out[conversation.FlagArchived] = *r.Archived
	}
	return out
}

type ListConversationsResponse struct {
	Conversations []conversation.Conversation `json:"conversations"`
	TotalUnread   int                         `json:"total_unread"`
}
