package events

// EventType identifies an inbound event delivered by the transport.
type EventType string

// Inbound event types
const (
	EventMessage      EventType = "message"
	EventTyping       EventType = "typing"
	EventPresence     EventType = "presence"
	EventReaction     EventType = "reaction"
	EventStatusUpdate EventType = "status_update"
	EventConversation EventType = "conversation"
	EventAck          EventType = "ack"
)

// IntentType identifies an outbound intent written to the transport.
type IntentType string

// Outbound intent types
const (
	IntentSendMessage    IntentType = "message.send"
	IntentTypingStarted  IntentType = "typing.started"
	IntentTypingStopped  IntentType = "typing.stopped"
	IntentMarkRead       IntentType = "conversation.read"
	IntentToggleReaction IntentType = "reaction.toggle"
	IntentPresence       IntentType = "presence.update"
)

// Redis channel prefixes
const (
	ChannelPrefixUser     = "channel:user:"
	ChannelPrefixOutbound = "channel:outbound:"
)
