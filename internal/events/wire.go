package events

import (
	"time"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
)

// MessagePayload is the server's representation of a message, used both by
// "message" events and by the HTTP contracts. ID is the server id; ClientID
// echoes the id the sender generated.
type MessagePayload struct {
	ID             string              `json:"id"`
	ClientID       string              `json:"clientId,omitempty"`
	ConversationID string              `json:"conversationId"`
	SenderID       string              `json:"senderId"`
	Type           message.Type        `json:"type"`
	Content        string              `json:"content"`
	Status         message.Status      `json:"status,omitempty"`
	ReplyTo        string              `json:"replyTo,omitempty"`
	Attachments    []AttachmentPayload `json:"attachments,omitempty"`
	Reactions      []ReactionWire      `json:"reactions,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

type AttachmentPayload struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size"`
}

type ReactionWire struct {
	UserID string `json:"userId"`
	Emoji  string `json:"emoji"`
}

// ToMessage maps the wire record onto the local model. The client id, when
// present, becomes the dedup key; the server id is kept alongside.
func (p MessagePayload) ToMessage(conversationID string) message.Message {
	m := message.Message{
		ID:              p.ClientID,
		ServerID:        p.ID,
		ConversationID:  p.ConversationID,
		SenderID:        p.SenderID,
		Type:            p.Type,
		Content:         p.Content,
		Status:          p.Status,
		ReplyTo:         p.ReplyTo,
		Timestamp:       p.Timestamp,
		ServerTimestamp: p.Timestamp,
	}
	if m.ID == "" {
		m.ID = p.ID
	}
	if m.ConversationID == "" {
		m.ConversationID = conversationID
	}
	if !m.Type.Valid() {
		m.Type = message.TypeText
	}
	for _, a := range p.Attachments {
		m.Attachments = append(m.Attachments, a.ToAttachment())
	}
	for _, r := range p.Reactions {
		m.Reactions = append(m.Reactions, message.Reaction{MessageID: m.ID, UserID: r.UserID, Emoji: r.Emoji})
	}
	return m
}

func (a AttachmentPayload) ToAttachment() message.Attachment {
	kind := message.MediaKind(a.Type)
	switch kind {
	case message.MediaImage, message.MediaVideo, message.MediaFile:
	default:
		kind = message.KindFromMime(a.MimeType)
	}
	return message.Attachment{ID: a.ID, Kind: kind, URL: a.URL, Name: a.Name, MimeType: a.MimeType, SizeBytes: a.Size}
}

// AttachmentsPayload converts uploaded attachments to their wire form.
func AttachmentsPayload(list []message.Attachment) []AttachmentPayload {
	if len(list) == 0 {
		return nil
	}
	out := make([]AttachmentPayload, len(list))
	for i, a := range list {
		out[i] = AttachmentPayload{ID: a.ID, Type: string(a.Kind), URL: a.URL, Name: a.Name, MimeType: a.MimeType, Size: a.SizeBytes}
	}
	return out
}

// ConversationPayload is the server's representation of a conversation.
type ConversationPayload struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         conversation.Type `json:"type"`
	Participants []string          `json:"participants"`
	LastMessage  *MessagePayload   `json:"lastMessage,omitempty"`
	UnreadCount  int               `json:"unreadCount"`
	Pinned       bool              `json:"pinned"`
	Muted        bool              `json:"muted"`
	Archived     bool              `json:"archived"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (p ConversationPayload) ToConversation() conversation.Conversation {
	c := conversation.Conversation{
		ID:           p.ID,
		Name:         p.Name,
		Type:         p.Type,
		Participants: append([]string(nil), p.Participants...),
		UnreadCount:  p.UnreadCount,
		Pinned:       p.Pinned,
		Muted:        p.Muted,
		Archived:     p.Archived,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
	if !c.Type.Valid() {
		c.Type = conversation.TypeDirect
	}
	if p.LastMessage != nil {
		c.LastMessage = &conversation.LastMessage{
			ID:        p.LastMessage.ID,
			SenderID:  p.LastMessage.SenderID,
			Preview:   p.LastMessage.Content,
			Timestamp: p.LastMessage.Timestamp,
		}
	}
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	return c
}
