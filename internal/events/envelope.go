package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire shape of every inbound event.
type Envelope struct {
	Type           EventType       `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewEnvelope marshals payload into an envelope.
func NewEnvelope(t EventType, conversationID string, payload interface{}, at time.Time) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	return Envelope{Type: t, ConversationID: conversationID, Payload: data, Timestamp: at}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("empty %s payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Intent is an outbound request written to the transport. ID is the
// idempotency key; for message sends it is the client message id.
type Intent struct {
	ID             string          `json:"id"`
	Type           IntentType      `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// NewIntent marshals payload into an intent.
func NewIntent(t IntentType, id, conversationID string, payload interface{}) (Intent, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Intent{}, fmt.Errorf("failed to marshal %s intent: %w", t, err)
		}
		data = raw
	}
	return Intent{ID: id, Type: t, ConversationID: conversationID, Payload: data, CreatedAt: time.Now()}, nil
}
