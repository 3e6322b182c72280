package services

import (
	"errors"

	"marketplace-chat/internal/events"
	"marketplace-chat/internal/transport"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/google/uuid"
)

// TypingNotifier turns composer typing signals into transport intents.
// Typing is ephemeral, so nothing is queued while the transport is down.
type TypingNotifier struct {
	transport *transport.Adapter
	userID    string
	logger    *logger.Logger
}

func NewTypingNotifier(t *transport.Adapter, userID string, l *logger.Logger) *TypingNotifier {
	if l == nil {
		l = logger.NewNop()
	}
	return &TypingNotifier{transport: t, userID: userID, logger: l.Named("typing")}
}

func (n *TypingNotifier) EmitTyping(conversationID string, typing bool) {
	if n.transport == nil || n.transport.State() != transport.StateConnected {
		return
	}
	kind := events.IntentTypingStopped
	if typing {
		kind = events.IntentTypingStarted
	}
	in, err := events.NewIntent(kind, uuid.NewString(), conversationID, events.TypingPayload{UserID: n.userID, IsTyping: typing})
	if err != nil {
		n.logger.Warnf("typing intent: %v", err)
		return
	}
	if err := n.transport.Send(in); err != nil && !errors.Is(err, chat_errors.ErrTransportDisconnected) {
		n.logger.Warnf("typing intent for %s dropped: %v", conversationID, err)
	}
}
