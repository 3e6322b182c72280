package conversation

import (
	"time"
)

// Type is the conversation kind.
type Type string

const (
	TypeDirect  Type = "direct"
	TypeGroup   Type = "group"
	TypeProduct Type = "product"
	TypeSupport Type = "support"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDirect, TypeGroup, TypeProduct, TypeSupport:
		return true
	}
	return false
}

// LastMessage is the summary of the most recent message shown in the list.
type LastMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Preview   string    `json:"preview"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the metadata kept for every conversation in the list.
type Conversation struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         Type         `json:"type"`
	Participants []string     `json:"participants"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	UnreadCount  int          `json:"unread_count"`
	Pinned       bool         `json:"pinned"`
	Muted        bool         `json:"muted"`
	Archived     bool         `json:"archived"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// LastActivity is the timestamp used for list ordering.
func (c Conversation) LastActivity() time.Time {
	if c.LastMessage != nil && c.LastMessage.Timestamp.After(c.UpdatedAt) {
		return c.LastMessage.Timestamp
	}
	return c.UpdatedAt
}

// HasParticipant reports whether userID takes part in the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no mutable state with c.
func (c Conversation) Clone() Conversation {
	if c.Participants != nil {
		c.Participants = append([]string(nil), c.Participants...)
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		c.LastMessage = &lm
	}
	return c
}

// Flag names one of the independent boolean flags of a conversation.
type Flag string

const (
	FlagPinned   Flag = "pinned"
	FlagMuted    Flag = "muted"
	FlagArchived Flag = "archived"
)

func (f Flag) Valid() bool {
	switch f {
	case FlagPinned, FlagMuted, FlagArchived:
		return true
	}
	return false
}

// Get returns the value of flag f.
func (c Conversation) Get(f Flag) bool {
	switch f {
	case FlagPinned:
		return c.Pinned
	case FlagMuted:
		return c.Muted
	case FlagArchived:
		return c.Archived
	}
	return false
}

// With returns a copy of c with exactly flag f set to v.
func (c Conversation) With(f Flag, v bool) Conversation {
	switch f {
	case FlagPinned:
		c.Pinned = v
	case FlagMuted:
		c.Muted = v
	case FlagArchived:
		c.Archived = v
	}
	return c
}
