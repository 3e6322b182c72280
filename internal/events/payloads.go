package events

import (
	"marketplace-chat/internal/domain/message"
)

type TypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type ReactionPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
	Emoji     string `json:"emoji"`
	Added     bool   `json:"added"`
}

// StatusUpdatePayload moves a message forward (delivered, read). MessageID is
// the client id; ServerID is accepted as an alternative key.
type StatusUpdatePayload struct {
	MessageID string         `json:"messageId"`
	ServerID  string         `json:"serverId,omitempty"`
	Status    message.Status `json:"status"`
}

// AckPayload answers a transport request correlated by ClientID.
type AckPayload struct {
	ClientID string          `json:"clientId"`
	Message  *MessagePayload `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Code     string          `json:"code,omitempty"`
}

// SendMessagePayload is the body of a message.send intent and of POST send.
type SendMessagePayload struct {
	ConversationID string              `json:"conversationId"`
	ClientID       string              `json:"clientId"`
	Content        string              `json:"content"`
	Type           message.Type        `json:"type"`
	Attachments    []AttachmentPayload `json:"attachments,omitempty"`
	ReplyTo        string              `json:"replyTo,omitempty"`
}

// ReactionIntentPayload is the body of a reaction.toggle intent and of POST reaction.
type ReactionIntentPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Emoji          string `json:"emoji"`
}
