package store

import (
	"sort"
	"time"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
)

// ListConversations returns the filtered, sorted conversation list.
func (s State) ListConversations(f conversation.Filter) []conversation.Conversation {
	out := make([]conversation.Conversation, 0, len(s.Conversations))
	for _, c := range s.Conversations {
		if f.Match(c) {
			out = append(out, c.Clone())
		}
	}
	conversation.Sort(out)
	return out
}

func (s State) Conversation(id string) (conversation.Conversation, bool) {
	c, ok := s.Conversations[id]
	if !ok {
		return conversation.Conversation{}, false
	}
	return c.Clone(), true
}

// TotalUnread sums unread counts over non-archived, non-muted conversations.
func (s State) TotalUnread() int {
	total := 0
	for _, c := range s.Conversations {
		if c.Archived || c.Muted {
			continue
		}
		total += c.UnreadCount
	}
	return total
}

func (s State) Thread(conversationID string) Thread {
	return s.Threads[conversationID]
}

// Messages returns the loaded window of a conversation, oldest first.
func (s State) Messages(conversationID string) []message.Message {
	t := s.Threads[conversationID]
	out := make([]message.Message, len(t.Messages))
	for i, m := range t.Messages {
		out[i] = m.Clone()
	}
	return out
}

// Message looks a message up by client id or server id.
func (s State) Message(conversationID, id string) (message.Message, bool) {
	t := s.Threads[conversationID]
	idx := findMessage(t, id)
	if idx < 0 {
		return message.Message{}, false
	}
	return t.Messages[idx].Clone(), true
}

// TypingUsers lists users typing in a conversation whose indicator was renewed
// within ttl of now. The local user is never included.
func (s State) TypingUsers(conversationID string, now time.Time, ttl time.Duration) []TypingUser {
	users := s.Typing[conversationID]
	out := make([]TypingUser, 0, len(users))
	for userID, at := range users {
		if userID == s.LocalUserID || now.Sub(at) >= ttl {
			continue
		}
		out = append(out, TypingUser{ConversationID: conversationID, UserID: userID, Timestamp: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// TypingUsers is State.TypingUsers evaluated with the store's clock and TTL.
func (s *Store) TypingUsers(conversationID string) []TypingUser {
	return s.Snapshot().TypingUsers(conversationID, s.clock(), s.ttl)
}
