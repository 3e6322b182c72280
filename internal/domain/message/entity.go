package message

import (
	"time"
)

// Type is the kind of content a message carries.
type Type string

const (
	TypeText    Type = "text"
	TypeImage   Type = "image"
	TypeVideo   Type = "video"
	TypeFile    Type = "file"
	TypeQuote   Type = "quote"
	TypeProduct Type = "product"
	TypeSystem  Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeFile, TypeQuote, TypeProduct, TypeSystem:
		return true
	}
	return false
}

// Message is a single chat message. ID is generated by the client and is the
// dedup key for the whole lifetime of the message; ServerID is filled in once
// the server confirms it.
type Message struct {
	ID              string       `json:"id"`
	ServerID        string       `json:"server_id,omitempty"`
	ConversationID  string       `json:"conversation_id"`
	SenderID        string       `json:"sender_id"`
	Type            Type         `json:"type"`
	Content         string       `json:"content"`
	Status          Status       `json:"status"`
	ReplyTo         string       `json:"reply_to,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	Reactions       []Reaction   `json:"reactions,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
	ServerTimestamp time.Time    `json:"server_timestamp,omitzero"`
	Error           string       `json:"error,omitempty"`

	// Seq is the insertion sequence assigned by the store; it breaks
	// timestamp ties and never changes once assigned.
	Seq int64 `json:"seq"`
}

// Clone returns a deep copy so snapshots never share slices with the store.
func (m Message) Clone() Message {
	if m.Attachments != nil {
		m.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Reactions != nil {
		m.Reactions = append([]Reaction(nil), m.Reactions...)
	}
	return m
}

// Before reports whether m sorts strictly before other in display order.
func (m Message) Before(other Message) bool {
	if !m.Timestamp.Equal(other.Timestamp) {
		return m.Timestamp.Before(other.Timestamp)
	}
	return m.Seq < other.Seq
}

// Reaction is the (message, user, emoji) triple.
type Reaction struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ToggleReaction adds the (user, emoji) reaction when absent and removes it
// when present. It returns the new list and whether the reaction was added.
func ToggleReaction(reactions []Reaction, r Reaction) ([]Reaction, bool) {
	out := make([]Reaction, 0, len(reactions)+1)
	removed := false
	for _, existing := range reactions {
		if existing.UserID == r.UserID && existing.Emoji == r.Emoji {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	if removed {
		return out, false
	}
	return append(out, r), true
}

// SetReaction forces the presence (or absence) of a reaction. Used when the
// server reports the authoritative result of a toggle.
func SetReaction(reactions []Reaction, r Reaction, present bool) []Reaction {
	has := HasReaction(reactions, r.UserID, r.Emoji)
	if has == present {
		return reactions
	}
	next, _ := ToggleReaction(reactions, r)
	return next
}

// HasReaction reports whether userID reacted with emoji.
func HasReaction(reactions []Reaction, userID, emoji string) bool {
	for _, r := range reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return true
		}
	}
	return false
}

// Patch is a partial update applied by UpdateMessage. Nil fields are left as is.
type Patch struct {
	Status    *Status
	Content   *string
	Reactions []Reaction
	// ReplaceReactions distinguishes "set reactions to empty" from "leave alone".
	ReplaceReactions bool
}
