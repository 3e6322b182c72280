package store

import (
	"maps"
	"time"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
)

// Thread is the loaded window of one conversation's messages.
type Thread struct {
	Messages []message.Message
	// Cursor marks the oldest loaded message; empty until the first page loads.
	Cursor  string
	HasMore bool
	Loaded  bool
}

func (t Thread) indexOf(id string) int {
	for i := range t.Messages {
		if t.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (t Thread) indexOfServerID(serverID string) int {
	if serverID == "" {
		return -1
	}
	for i := range t.Messages {
		if t.Messages[i].ServerID == serverID {
			return i
		}
	}
	return -1
}

// TypingUser is an ephemeral typing indicator.
type TypingUser struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// State is an immutable snapshot. The reducer never mutates a map or slice
// reachable from a published State; it copies what it changes.
type State struct {
	LocalUserID        string
	ActiveConversation string

	Conversations map[string]conversation.Conversation
	Threads       map[string]Thread
	// Typing maps conversation id -> user id -> last renewal.
	Typing map[string]map[string]time.Time

	// Pending maps a locally sent message id to the generation of its
	// in-flight confirmation.
	Pending map[string]uint64
	// FlagGen holds the generation of the latest optimistic flag mutation.
	FlagGen map[string]uint64
	// ReadGen holds the generation of the latest optimistic mark-as-read.
	ReadGen map[string]uint64

	// MaxThreadMessages bounds each thread window; 0 means unbounded.
	MaxThreadMessages int

	NextSeq int64
	NextGen uint64
	Version uint64
}

// NewState returns an empty state for the given local user.
func NewState(localUserID string) State {
	return State{
		LocalUserID:   localUserID,
		Conversations: map[string]conversation.Conversation{},
		Threads:       map[string]Thread{},
		Typing:        map[string]map[string]time.Time{},
		Pending:       map[string]uint64{},
		FlagGen:       map[string]uint64{},
		ReadGen:       map[string]uint64{},
	}
}

func flagKey(conversationID string, f conversation.Flag) string {
	return conversationID + "|" + string(f)
}

// FlagGeneration returns the generation of the latest mutation of flag f.
func (s State) FlagGeneration(conversationID string, f conversation.Flag) uint64 {
	return s.FlagGen[flagKey(conversationID, f)]
}

// PendingGeneration returns the in-flight generation of a sent message, or 0.
func (s State) PendingGeneration(messageID string) uint64 {
	return s.Pending[messageID]
}

func (s State) setConversation(c conversation.Conversation) State {
	m := maps.Clone(s.Conversations)
	m[c.ID] = c
	s.Conversations = m
	return s
}

func (s State) setThread(conversationID string, t Thread) State {
	m := maps.Clone(s.Threads)
	m[conversationID] = t
	s.Threads = m
	return s
}

func (s State) setPending(messageID string, gen uint64) State {
	m := maps.Clone(s.Pending)
	if gen == 0 {
		delete(m, messageID)
	} else {
		m[messageID] = gen
	}
	s.Pending = m
	return s
}

func (s State) setTyping(conversationID string, users map[string]time.Time) State {
	m := maps.Clone(s.Typing)
	if len(users) == 0 {
		delete(m, conversationID)
	} else {
		m[conversationID] = users
	}
	s.Typing = m
	return s
}

func (s State) nextGen() (State, uint64) {
	s.NextGen++
	return s, s.NextGen
}
