package services

import (
	"context"
	"fmt"

	"marketplace-chat/internal/api"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/transport"
	chat_errors "marketplace-chat/pkg/errors"
)

// Confirmer delivers an optimistic send and returns the server's record.
type Confirmer interface {
	Confirm(ctx context.Context, in events.SendMessagePayload) (message.Message, error)
}

// HTTPConfirmer confirms through POST send.
type HTTPConfirmer struct {
	Client *api.Client
}

func (c HTTPConfirmer) Confirm(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
	return c.Client.SendMessage(ctx, in)
}

// TransportConfirmer confirms through a message.send intent answered by an ack.
type TransportConfirmer struct {
	Transport *transport.Adapter
}

func (c TransportConfirmer) Confirm(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
	intent, err := events.NewIntent(events.IntentSendMessage, in.ClientID, in.ConversationID, in)
	if err != nil {
		return message.Message{}, fmt.Errorf("%w: %v", chat_errors.ErrInvalidInput, err)
	}
	ack, err := c.Transport.Request(ctx, intent)
	if err != nil {
		return message.Message{}, err
	}
	if ack.Message == nil {
		return message.Message{ID: in.ClientID, ConversationID: in.ConversationID, Status: message.StatusDelivered}, nil
	}
	p := *ack.Message
	if p.ClientID == "" {
		p.ClientID = in.ClientID
	}
	return p.ToMessage(in.ConversationID), nil
}
