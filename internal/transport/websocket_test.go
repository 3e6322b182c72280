package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketplace-chat/internal/events"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ackServer answers every intent with an ack carrying a server id.
func ackServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var in events.Intent
			if err := ws.ReadJSON(&in); err != nil {
				return
			}
			env, _ := events.NewEnvelope(events.EventAck, in.ConversationID, events.AckPayload{
				ClientID: in.ID,
				Message:  &events.MessagePayload{ID: "srv-" + in.ID, ClientID: in.ID, ConversationID: in.ConversationID},
			}, time.Now())
			if err := ws.WriteJSON(env); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv := ackServer(t, "secret")
	defer srv.Close()

	a := NewAdapter(&WebSocketDialer{URL: wsURL(srv), Token: "secret"}, testConfig(), nil)
	defer a.Disconnect()
	a.Connect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ack, err := a.Request(ctx, intent("m1"))
	require.NoError(t, err)
	require.NotNil(t, ack.Message)
	assert.Equal(t, "srv-m1", ack.Message.ID)
	assert.Equal(t, StateConnected, a.State())
}

func TestWebSocketDialUnauthorized(t *testing.T) {
	srv := ackServer(t, "secret")
	defer srv.Close()

	d := &WebSocketDialer{URL: wsURL(srv), Token: "wrong"}
	_, err := d.Dial(context.Background())
	assert.ErrorIs(t, err, chat_errors.ErrUnauthorized)
}

func TestWebSocketDialNetworkError(t *testing.T) {
	d := &WebSocketDialer{URL: "ws://127.0.0.1:1/none"}
	_, err := d.Dial(context.Background())
	assert.ErrorIs(t, err, chat_errors.ErrNetwork)
}
