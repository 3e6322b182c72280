// Package transport owns the single logical realtime connection. Callers
// hand it typed intents and register for inbound events; the adapter queues
// while the channel is down and reconnects with capped exponential backoff.
package transport

import (
	"context"

	"marketplace-chat/internal/events"
)

// State is the connection state of the adapter.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Conn is one established channel. ReadEnvelope blocks until an event
// arrives or the connection fails; Close must unblock it.
type Conn interface {
	ReadEnvelope(ctx context.Context) (events.Envelope, error)
	WriteIntent(ctx context.Context, in events.Intent) error
	Close() error
}

// Dialer opens a Conn. Errors wrapping chat_errors.ErrUnauthorized are terminal.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Recorder receives transport telemetry.
type Recorder interface {
	ConnectionState(state string)
	IntentWritten(kind string)
	EventReceived(kind string)
	Reconnect()
	QueueDepth(n int)
}

type nopRecorder struct{}

func (nopRecorder) ConnectionState(string) {}
func (nopRecorder) IntentWritten(string)   {}
func (nopRecorder) EventReceived(string)   {}
func (nopRecorder) Reconnect()             {}
func (nopRecorder) QueueDepth(int)         {}
