package httpdto

import (
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/store"
)

type SendMessageRequest struct {
	Content string       `json:"content"`
	Type    message.Type `json:"type"`
	ReplyTo string       `json:"reply_to"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

type ReactionResponse struct {
	Added bool `json:"added"`
}

type UpdateMessageRequest struct {
	Content *string         `json:"content"`
	Status  *message.Status `json:"status"`
}

type ThreadResponse struct {
	Messages []message.Message  `json:"messages"`
	HasMore  bool               `json:"has_more"`
	Typing   []store.TypingUser `json:"typing"`
}

type SetContentRequest struct {
	Content string `json:"content"`
}

type ReplyToRequest struct {
	MessageID string `json:"message_id"`
}
