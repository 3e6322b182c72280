package store

import (
	"maps"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
)

// Topics published by the store.
const (
	TopicConversations = "conversations"
	TopicMessages      = "messages"
	TopicTyping        = "typing"
)

func MessagesTopic(conversationID string) string { return TopicMessages + ":" + conversationID }
func TypingTopic(conversationID string) string   { return TopicTyping + ":" + conversationID }

const previewLength = 80

// Reduce applies a to s and returns the next state together with the topics
// whose observable content changed. It has no side effects.
func Reduce(s State, a Action) (State, []string) {
	switch a := a.(type) {
	case SetActiveConversation:
		if s.ActiveConversation == a.ConversationID {
			return s, nil
		}
		s.ActiveConversation = a.ConversationID
		return s, []string{TopicConversations}

	case UpsertConversations:
		return reduceUpsertConversations(s, a)

	case SetConversationFlag:
		c, ok := s.Conversations[a.ConversationID]
		if !ok || !a.Flag.Valid() {
			return s, nil
		}
		var gen uint64
		s, gen = s.nextGen()
		fg := maps.Clone(s.FlagGen)
		fg[flagKey(a.ConversationID, a.Flag)] = gen
		s.FlagGen = fg
		if c.Get(a.Flag) == a.Value {
			return s, nil
		}
		return s.setConversation(c.With(a.Flag, a.Value)), []string{TopicConversations}

	case RollbackConversationFlag:
		c, ok := s.Conversations[a.ConversationID]
		if !ok || s.FlagGen[flagKey(a.ConversationID, a.Flag)] != a.Generation {
			return s, nil
		}
		if c.Get(a.Flag) == a.Value {
			return s, nil
		}
		return s.setConversation(c.With(a.Flag, a.Value)), []string{TopicConversations}

	case MarkConversationRead:
		c, ok := s.Conversations[a.ConversationID]
		if !ok {
			return s, nil
		}
		var gen uint64
		s, gen = s.nextGen()
		rg := maps.Clone(s.ReadGen)
		rg[a.ConversationID] = gen
		s.ReadGen = rg
		if c.UnreadCount == 0 {
			return s, nil
		}
		c.UnreadCount = 0
		return s.setConversation(c), []string{TopicConversations}

	case RestoreUnread:
		c, ok := s.Conversations[a.ConversationID]
		if !ok || a.Count <= 0 || s.ReadGen[a.ConversationID] != a.Generation {
			return s, nil
		}
		c.UnreadCount += a.Count
		return s.setConversation(c), []string{TopicConversations}

	case PageLoaded:
		return reducePageLoaded(s, a)

	case AddLocalMessage:
		return reduceAddLocal(s, a)

	case MessageReceived:
		return reduceReceived(s, a)

	case MessageConfirmed:
		return reduceConfirmed(s, a)

	case MessageFailed:
		return reduceFailed(s, a)

	case RetryMessage:
		t := s.Threads[a.ConversationID]
		idx := t.indexOf(a.MessageID)
		if idx < 0 || !t.Messages[idx].Status.CanRetry() {
			return s, nil
		}
		m := t.Messages[idx]
		m.Status = message.StatusSending
		m.Error = ""
		var gen uint64
		s, gen = s.nextGen()
		s = s.setPending(m.ID, gen)
		return s.setThread(a.ConversationID, replaceAt(t, idx, m)), []string{MessagesTopic(a.ConversationID)}

	case RemoveMessage:
		t := s.Threads[a.ConversationID]
		if _, ok := s.Pending[a.MessageID]; ok {
			s = s.setPending(a.MessageID, 0)
		}
		idx := t.indexOf(a.MessageID)
		if idx < 0 {
			return s, nil
		}
		msgs := make([]message.Message, 0, len(t.Messages)-1)
		msgs = append(msgs, t.Messages[:idx]...)
		msgs = append(msgs, t.Messages[idx+1:]...)
		t.Messages = msgs
		return s.setThread(a.ConversationID, t), []string{MessagesTopic(a.ConversationID)}

	case UpdateMessage:
		return reduceUpdate(s, a)

	case MessageStatusChanged:
		t := s.Threads[a.ConversationID]
		idx := t.indexOf(a.MessageID)
		if idx < 0 {
			idx = t.indexOfServerID(a.ServerID)
		}
		if idx < 0 {
			return s, nil
		}
		m := t.Messages[idx]
		if m.Status == a.Status || !m.Status.CanTransition(a.Status) {
			return s, nil
		}
		m.Status = a.Status
		return s.setThread(a.ConversationID, replaceAt(t, idx, m)), []string{MessagesTopic(a.ConversationID)}

	case ToggleReaction:
		t := s.Threads[a.ConversationID]
		idx := findMessage(t, a.Reaction.MessageID)
		if idx < 0 {
			return s, nil
		}
		m := t.Messages[idx]
		m.Reactions, _ = message.ToggleReaction(m.Reactions, a.Reaction)
		return s.setThread(a.ConversationID, replaceAt(t, idx, m)), []string{MessagesTopic(a.ConversationID)}

	case SetReaction:
		t := s.Threads[a.ConversationID]
		idx := findMessage(t, a.Reaction.MessageID)
		if idx < 0 {
			return s, nil
		}
		m := t.Messages[idx]
		if message.HasReaction(m.Reactions, a.Reaction.UserID, a.Reaction.Emoji) == a.Present {
			return s, nil
		}
		m.Reactions = message.SetReaction(m.Reactions, a.Reaction, a.Present)
		return s.setThread(a.ConversationID, replaceAt(t, idx, m)), []string{MessagesTopic(a.ConversationID)}

	case TypingStarted:
		if a.UserID == "" || a.UserID == s.LocalUserID {
			return s, nil
		}
		prev, known := s.Typing[a.ConversationID][a.UserID]
		if known && !a.At.After(prev) {
			return s, nil
		}
		users := maps.Clone(s.Typing[a.ConversationID])
		if users == nil {
			users = make(map[string]time.Time)
		}
		users[a.UserID] = a.At
		return s.setTyping(a.ConversationID, users), []string{TypingTopic(a.ConversationID)}

	case TypingStopped:
		users, ok := s.Typing[a.ConversationID]
		if !ok {
			return s, nil
		}
		if _, ok := users[a.UserID]; !ok {
			return s, nil
		}
		next := maps.Clone(users)
		delete(next, a.UserID)
		return s.setTyping(a.ConversationID, next), []string{TypingTopic(a.ConversationID)}

	case ExpireTyping:
		return reduceExpireTyping(s, a)
	}
	return s, nil
}

func reduceUpsertConversations(s State, a UpsertConversations) (State, []string) {
	if len(a.Conversations) == 0 {
		return s, nil
	}
	m := maps.Clone(s.Conversations)
	changed := false
	for _, c := range a.Conversations {
		if c.ID == "" {
			continue
		}
		c = c.Clone()
		if c.UnreadCount < 0 {
			c.UnreadCount = 0
		}
		if existing, ok := m[c.ID]; ok && c.LastMessage == nil {
			c.LastMessage = existing.LastMessage
		}
		m[c.ID] = c
		changed = true
	}
	if !changed {
		return s, nil
	}
	s.Conversations = m
	return s, []string{TopicConversations}
}

func reducePageLoaded(s State, a PageLoaded) (State, []string) {
	t := s.Threads[a.ConversationID]
	var oldest string
	if len(t.Messages) > 0 {
		oldest = t.Messages[0].ID
	}
	msgs := append([]message.Message(nil), t.Messages...)
	for _, m := range a.Messages {
		if m.ID == "" {
			continue
		}
		probe := Thread{Messages: msgs}
		if probe.indexOf(m.ID) >= 0 || probe.indexOfServerID(m.ServerID) >= 0 {
			continue
		}
		m = m.Clone()
		m.ConversationID = a.ConversationID
		if !m.Status.Valid() {
			m.Status = message.StatusDelivered
		}
		s.NextSeq++
		m.Seq = s.NextSeq
		msgs = insertOrdered(msgs, m)
	}
	t.Messages = msgs
	// The cursor only moves backwards. A newest-page reload into a thread
	// that is already backfilled keeps the existing position.
	backward := !t.Loaded ||
		(a.From != "" && a.From == t.Cursor) ||
		(len(msgs) > 0 && msgs[0].ID != oldest)
	if backward {
		t.HasMore = a.HasMore
		if a.NextCursor != "" {
			t.Cursor = a.NextCursor
		} else if len(msgs) > 0 {
			t.Cursor = cursorFor(msgs[0])
		}
	}
	t.Loaded = true
	s = s.setThread(a.ConversationID, t)
	topics := []string{MessagesTopic(a.ConversationID)}
	if len(msgs) > 0 {
		var touched bool
		if s, touched = touchLastMessage(s, msgs[len(msgs)-1]); touched {
			topics = append(topics, TopicConversations)
		}
	}
	return s, topics
}

func reduceAddLocal(s State, a AddLocalMessage) (State, []string) {
	m := a.Message.Clone()
	t := s.Threads[m.ConversationID]
	if m.ID == "" || t.indexOf(m.ID) >= 0 {
		return s, nil
	}
	m.Status = message.StatusSending
	m.Error = ""
	s.NextSeq++
	m.Seq = s.NextSeq
	t.Messages = insertOrdered(append([]message.Message(nil), t.Messages...), m)
	t = evict(t, s.MaxThreadMessages)
	var gen uint64
	s, gen = s.nextGen()
	s = s.setPending(m.ID, gen)
	s = s.setThread(m.ConversationID, t)
	topics := []string{MessagesTopic(m.ConversationID)}
	var touched bool
	if s, touched = touchLastMessage(s, m); touched {
		topics = append(topics, TopicConversations)
	}
	return s, topics
}

func reduceReceived(s State, a MessageReceived) (State, []string) {
	in := a.Message.Clone()
	convID := in.ConversationID
	if in.ID == "" || convID == "" {
		return s, nil
	}
	t := s.Threads[convID]
	idx := t.indexOf(in.ID)
	if idx < 0 {
		idx = t.indexOfServerID(in.ServerID)
	}
	if idx >= 0 {
		// echo of a message we already hold: reconcile in place, keep position
		m := t.Messages[idx]
		if in.ServerID != "" {
			m.ServerID = in.ServerID
		}
		if !in.ServerTimestamp.IsZero() {
			m.ServerTimestamp = in.ServerTimestamp
		}
		if in.Status != "" && in.Status != message.StatusSending && in.Status != message.StatusFailed &&
			m.Status.CanTransition(in.Status) {
			m.Status = in.Status
		}
		if in.Reactions != nil {
			m.Reactions = in.Reactions
		}
		return s.setThread(convID, replaceAt(t, idx, m)), []string{MessagesTopic(convID)}
	}

	if !in.Status.Valid() || in.Status == message.StatusSending || in.Status == message.StatusFailed {
		in.Status = message.StatusDelivered
	}
	s.NextSeq++
	in.Seq = s.NextSeq
	t.Messages = insertOrdered(append([]message.Message(nil), t.Messages...), in)
	t = evict(t, s.MaxThreadMessages)
	s = s.setThread(convID, t)
	topics := []string{MessagesTopic(convID), TopicConversations}

	c, ok := s.Conversations[convID]
	if !ok {
		c = conversation.Conversation{ID: convID, Type: conversation.TypeDirect, CreatedAt: in.Timestamp, UpdatedAt: in.Timestamp}
	}
	if in.SenderID != s.LocalUserID && convID != s.ActiveConversation {
		c.UnreadCount++
	}
	s = s.setConversation(c)
	s, _ = touchLastMessage(s, in)

	// a delivered message ends the sender's typing indicator
	if _, typing := s.Typing[convID][in.SenderID]; typing {
		users := maps.Clone(s.Typing[convID])
		delete(users, in.SenderID)
		s = s.setTyping(convID, users)
		topics = append(topics, TypingTopic(convID))
	}
	return s, topics
}

func reduceConfirmed(s State, a MessageConfirmed) (State, []string) {
	if a.Generation == 0 || s.Pending[a.MessageID] != a.Generation {
		return s, nil
	}
	s = s.setPending(a.MessageID, 0)
	t := s.Threads[a.ConversationID]
	idx := t.indexOf(a.MessageID)
	if idx < 0 {
		return s, nil
	}
	m := t.Messages[idx]
	if a.Confirmed.ServerID != "" {
		m.ServerID = a.Confirmed.ServerID
	}
	if !a.Confirmed.ServerTimestamp.IsZero() {
		m.ServerTimestamp = a.Confirmed.ServerTimestamp
	}
	target := message.StatusDelivered
	if a.Confirmed.Status == message.StatusRead {
		target = message.StatusRead
	}
	if m.Status.CanTransition(target) {
		m.Status = target
	}
	m.Error = ""
	return s.setThread(a.ConversationID, replaceAt(t, idx, m)), []string{MessagesTopic(a.ConversationID)}
}

func reduceFailed(s State, a MessageFailed) (State, []string) {
	if a.Generation == 0 || s.Pending[a.MessageID] != a.Generation {
		return s, nil
	}
	s = s.setPending(a.MessageID, 0)
	t := s.Threads[a.ConversationID]
	idx := t.indexOf(a.MessageID)
	if idx < 0 {
		return s, nil
	}
	m := t.Messages[idx]
	if !m.Status.CanTransition(message.StatusFailed) {
		return s, nil
	}
	m.Status = message.StatusFailed
	m.Error = a.Reason
	return s.setThread(a.ConversationID, replaceAt(t, idx, m)), []string{MessagesTopic(a.ConversationID)}
}

func reduceUpdate(s State, a UpdateMessage) (State, []string) {
	t := s.Threads[a.ConversationID]
	idx := t.indexOf(a.MessageID)
	if idx < 0 {
		return s, nil
	}
	m := t.Messages[idx]
	changed := false
	if a.Patch.Content != nil && m.Status != message.StatusRead && *a.Patch.Content != m.Content {
		m.Content = *a.Patch.Content
		changed = true
	}
	if a.Patch.Status != nil && *a.Patch.Status != m.Status && m.Status.CanTransition(*a.Patch.Status) {
		m.Status = *a.Patch.Status
		changed = true
	}
	if a.Patch.ReplaceReactions {
		m.Reactions = append([]message.Reaction(nil), a.Patch.Reactions...)
		changed = true
	}
	if !changed {
		return s, nil
	}
	return s.setThread(a.ConversationID, replaceAt(t, idx, m)), []string{MessagesTopic(a.ConversationID)}
}

func reduceExpireTyping(s State, a ExpireTyping) (State, []string) {
	var topics []string
	var next map[string]map[string]time.Time
	for convID, users := range s.Typing {
		var kept map[string]time.Time
		expired := false
		for userID, at := range users {
			if a.Now.Sub(at) >= a.TTL {
				expired = true
				continue
			}
			if kept == nil {
				kept = make(map[string]time.Time)
			}
			kept[userID] = at
		}
		if !expired {
			continue
		}
		if next == nil {
			next = maps.Clone(s.Typing)
		}
		if len(kept) == 0 {
			delete(next, convID)
		} else {
			next[convID] = kept
		}
		topics = append(topics, TypingTopic(convID))
	}
	if next == nil {
		return s, nil
	}
	sort.Strings(topics)
	s.Typing = next
	return s, topics
}

// insertOrdered places m after every message that does not sort after it.
// msgs must be a private copy.
func insertOrdered(msgs []message.Message, m message.Message) []message.Message {
	idx := sort.Search(len(msgs), func(i int) bool { return m.Before(msgs[i]) })
	msgs = append(msgs, message.Message{})
	copy(msgs[idx+1:], msgs[idx:])
	msgs[idx] = m
	return msgs
}

func replaceAt(t Thread, idx int, m message.Message) Thread {
	msgs := append([]message.Message(nil), t.Messages...)
	msgs[idx] = m
	t.Messages = msgs
	return t
}

func findMessage(t Thread, id string) int {
	if idx := t.indexOf(id); idx >= 0 {
		return idx
	}
	return t.indexOfServerID(id)
}

// evict trims the oldest messages beyond limit; they can be paged back in.
func evict(t Thread, limit int) Thread {
	if limit <= 0 || len(t.Messages) <= limit {
		return t
	}
	t.Messages = append([]message.Message(nil), t.Messages[len(t.Messages)-limit:]...)
	t.HasMore = true
	t.Cursor = cursorFor(t.Messages[0])
	return t
}

func cursorFor(m message.Message) string {
	if m.ServerID != "" {
		return m.ServerID
	}
	return m.ID
}

func touchLastMessage(s State, m message.Message) (State, bool) {
	c, ok := s.Conversations[m.ConversationID]
	if !ok {
		return s, false
	}
	if c.LastMessage != nil && m.Timestamp.Before(c.LastMessage.Timestamp) {
		return s, false
	}
	if c.LastMessage != nil && c.LastMessage.ID == m.ID {
		return s, false
	}
	c.LastMessage = &conversation.LastMessage{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Preview:   preview(m),
		Timestamp: m.Timestamp,
	}
	if m.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = m.Timestamp
	}
	return s.setConversation(c), true
}

func preview(m message.Message) string {
	text := strings.TrimSpace(m.Content)
	if text == "" && len(m.Attachments) > 0 {
		return "[" + string(m.Attachments[0].Kind) + "]"
	}
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	return string([]rune(text)[:previewLength]) + "…"
}
