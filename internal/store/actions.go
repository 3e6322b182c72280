package store

import (
	"time"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
)

// Action is the closed union of state changes accepted by Reduce.
type Action interface {
	actionName() string
}

type SetActiveConversation struct {
	ConversationID string
}

type UpsertConversations struct {
	Conversations []conversation.Conversation
}

// SetConversationFlag is an optimistic flag mutation. It bumps the flag's generation.
type SetConversationFlag struct {
	ConversationID string
	Flag           conversation.Flag
	Value          bool
}

// RollbackConversationFlag restores Value unless a newer mutation superseded Generation.
type RollbackConversationFlag struct {
	ConversationID string
	Flag           conversation.Flag
	Value          bool
	Generation     uint64
}

type MarkConversationRead struct {
	ConversationID string
}

// RestoreUnread undoes a failed mark-as-read by adding Count back.
type RestoreUnread struct {
	ConversationID string
	Count          int
	Generation     uint64
}

// PageLoaded merges a history page. From is the cursor the page was requested
// with; empty for the newest page.
type PageLoaded struct {
	ConversationID string
	From           string
	Messages       []message.Message
	NextCursor     string
	HasMore        bool
}

// AddLocalMessage inserts an optimistic message with status sending.
type AddLocalMessage struct {
	Message message.Message
}

// MessageReceived inserts or reconciles an inbound message.
type MessageReceived struct {
	Message message.Message
}

type MessageConfirmed struct {
	ConversationID string
	MessageID      string
	Generation     uint64
	Confirmed      message.Message
}

type MessageFailed struct {
	ConversationID string
	MessageID      string
	Generation     uint64
	Reason         string
}

// RetryMessage moves a failed message back to sending under a new generation.
type RetryMessage struct {
	ConversationID string
	MessageID      string
}

// RemoveMessage drops a message and its pending operation.
type RemoveMessage struct {
	ConversationID string
	MessageID      string
}

type UpdateMessage struct {
	ConversationID string
	MessageID      string
	Patch          message.Patch
}

// MessageStatusChanged applies a status update keyed by client or server id.
type MessageStatusChanged struct {
	ConversationID string
	MessageID      string
	ServerID       string
	Status         message.Status
}

type ToggleReaction struct {
	ConversationID string
	Reaction       message.Reaction
}

type SetReaction struct {
	ConversationID string
	Reaction       message.Reaction
	Present        bool
}

type TypingStarted struct {
	ConversationID string
	UserID         string
	At             time.Time
}

type TypingStopped struct {
	ConversationID string
	UserID         string
}

// ExpireTyping prunes typing entries not renewed within TTL of Now.
type ExpireTyping struct {
	Now time.Time
	TTL time.Duration
}

func (SetActiveConversation) actionName() string    { return "conversation/active" }
func (UpsertConversations) actionName() string      { return "conversation/upsert" }
func (SetConversationFlag) actionName() string      { return "conversation/flag" }
func (RollbackConversationFlag) actionName() string { return "conversation/flag_rollback" }
func (MarkConversationRead) actionName() string     { return "conversation/read" }
func (RestoreUnread) actionName() string            { return "conversation/read_rollback" }
func (PageLoaded) actionName() string               { return "message/page" }
func (AddLocalMessage) actionName() string          { return "message/add_local" }
func (MessageReceived) actionName() string          { return "message/received" }
func (MessageConfirmed) actionName() string         { return "message/confirmed" }
func (MessageFailed) actionName() string            { return "message/failed" }
func (RetryMessage) actionName() string             { return "message/retry" }
func (RemoveMessage) actionName() string            { return "message/remove" }
func (UpdateMessage) actionName() string            { return "message/update" }
func (MessageStatusChanged) actionName() string     { return "message/status" }
func (ToggleReaction) actionName() string           { return "reaction/toggle" }
func (SetReaction) actionName() string              { return "reaction/set" }
func (TypingStarted) actionName() string            { return "typing/started" }
func (TypingStopped) actionName() string            { return "typing/stopped" }
func (ExpireTyping) actionName() string             { return "typing/expire" }
