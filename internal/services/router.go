package services

import (
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/presence"
	"marketplace-chat/internal/store"
	"marketplace-chat/pkg/logger"
)

// InboundRouter applies transport events to the stores. It is registered
// with transport.Adapter.OnEvent and runs on the adapter's read goroutine.
type InboundRouter struct {
	store    *store.Store
	presence *presence.Tracker
	logger   *logger.Logger
}

func NewInboundRouter(st *store.Store, tracker *presence.Tracker, l *logger.Logger) *InboundRouter {
	if l == nil {
		l = logger.NewNop()
	}
	return &InboundRouter{store: st, presence: tracker, logger: l.Named("inbound")}
}

func (r *InboundRouter) Handle(env events.Envelope) {
	var err error
	switch env.Type {
	case events.EventMessage:
		err = r.onMessage(env)
	case events.EventTyping:
		err = r.onTyping(env)
	case events.EventPresence:
		err = r.onPresence(env)
	case events.EventReaction:
		err = r.onReaction(env)
	case events.EventStatusUpdate:
		err = r.onStatus(env)
	case events.EventConversation:
		err = r.onConversation(env)
	case events.EventAck:
		// correlated by the adapter
	default:
		r.logger.Warnf("ignoring unknown event type %q", env.Type)
	}
	if err != nil {
		r.logger.Warnf("dropping %s event: %v", env.Type, err)
	}
}

func (r *InboundRouter) onMessage(env events.Envelope) error {
	var p events.MessagePayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	m := p.ToMessage(env.ConversationID)
	if m.Timestamp.IsZero() {
		m.Timestamp = env.Timestamp
	}
	r.store.Dispatch(store.MessageReceived{Message: m})
	return nil
}

// Typing renewals are stamped with the local clock; the expiry window is local.
func (r *InboundRouter) onTyping(env events.Envelope) error {
	var p events.TypingPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	if p.IsTyping {
		r.store.Dispatch(store.TypingStarted{ConversationID: env.ConversationID, UserID: p.UserID, At: r.store.Now()})
	} else {
		r.store.Dispatch(store.TypingStopped{ConversationID: env.ConversationID, UserID: p.UserID})
	}
	return nil
}

func (r *InboundRouter) onPresence(env events.Envelope) error {
	var p events.PresencePayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	if r.presence != nil {
		r.presence.Apply(p.UserID, presence.Status(p.Status), env.Timestamp)
	}
	return nil
}

func (r *InboundRouter) onReaction(env events.Envelope) error {
	var p events.ReactionPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	r.store.Dispatch(store.SetReaction{
		ConversationID: env.ConversationID,
		Reaction:       message.Reaction{MessageID: p.MessageID, UserID: p.UserID, Emoji: p.Emoji, CreatedAt: env.Timestamp},
		Present:        p.Added,
	})
	return nil
}

func (r *InboundRouter) onStatus(env events.Envelope) error {
	var p events.StatusUpdatePayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	id := p.MessageID
	if id == "" {
		id = p.ServerID
	}
	r.store.Dispatch(store.MessageStatusChanged{
		ConversationID: env.ConversationID,
		MessageID:      id,
		ServerID:       p.ServerID,
		Status:         p.Status,
	})
	return nil
}

func (r *InboundRouter) onConversation(env events.Envelope) error {
	var p events.ConversationPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = env.ConversationID
	}
	r.store.Dispatch(store.UpsertConversations{Conversations: []conversation.Conversation{p.ToConversation()}})
	return nil
}
