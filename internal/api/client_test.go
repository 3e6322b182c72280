package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/events"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok", time.Second, nil), srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListConversationsSendsFilter(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/conversations", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "bike", q.Get("search"))
		assert.Equal(t, "true", q.Get("pinned"))
		assert.Empty(t, q.Get("archived"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"conversations": []map[string]interface{}{
				{"id": "c1", "name": "Bike", "type": "product", "unreadCount": 2, "pinned": true},
				{"id": ""},
			},
		})
	})

	list, err := c.ListConversations(context.Background(), conversation.Filter{Search: "bike", PinnedOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "c1", list[0].ID)
	assert.Equal(t, conversation.TypeProduct, list[0].Type)
	assert.Equal(t, 2, list[0].UnreadCount)
	assert.True(t, list[0].Pinned)
}

func TestListMessagesPage(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "c1", q.Get("conversationId"))
		assert.Equal(t, "m10", q.Get("cursor"))
		assert.Equal(t, "30", q.Get("limit"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"messages": []map[string]interface{}{
				{"id": "s1", "clientId": "m1", "senderId": "u2", "content": "a", "timestamp": "2026-03-01T10:00:00Z"},
				{"id": "s2", "senderId": "u2", "content": "b", "timestamp": "2026-03-01T10:01:00Z"},
			},
			"hasMore": true,
		})
	})

	page, err := c.ListMessages(context.Background(), "c1", "m10", 30)
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "m1", page.Messages[0].ID)
	assert.Equal(t, "s1", page.Messages[0].ServerID)
	assert.Equal(t, "s2", page.Messages[1].ID)
	assert.Equal(t, "c1", page.Messages[1].ConversationID)
}

func TestSendMessageKeepsClientID(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/send", r.URL.Path)
		var body events.SendMessagePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cli-1", body.ClientID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": "srv-1", "conversationId": body.ConversationID, "content": body.Content, "status": "delivered",
			"timestamp": "2026-03-01T10:00:00Z",
		})
	})

	m, err := c.SendMessage(context.Background(), events.SendMessagePayload{ConversationID: "c1", ClientID: "cli-1", Content: "hi", Type: "text"})
	require.NoError(t, err)
	assert.Equal(t, "cli-1", m.ID)
	assert.Equal(t, "srv-1", m.ServerID)
	assert.False(t, m.ServerTimestamp.IsZero())
}

func TestToggleReactionAndMutations(t *testing.T) {
	var patched map[string]bool
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/reaction":
			writeJSON(w, http.StatusOK, map[string]bool{"added": true})
		case r.URL.Path == "/conversations/c1/read" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/conversations/c1" && r.Method == http.MethodPatch:
			_ = json.NewDecoder(r.Body).Decode(&patched)
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/conversations" && r.Method == http.MethodPost:
			writeJSON(w, http.StatusCreated, map[string]interface{}{"id": "c9", "type": "group", "participants": []string{"a", "b"}})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	added, err := c.ToggleReaction(ctx, "c1", "m1", "👍")
	require.NoError(t, err)
	assert.True(t, added)

	require.NoError(t, c.MarkRead(ctx, "c1"))
	require.NoError(t, c.SetFlag(ctx, "c1", conversation.FlagMuted, true))
	assert.Equal(t, map[string]bool{"muted": true}, patched)
	assert.ErrorIs(t, c.SetFlag(ctx, "c1", conversation.Flag("starred"), true), chat_errors.ErrValidation)

	created, err := c.CreateConversation(ctx, CreateConversationInput{Type: conversation.TypeGroup, Participants: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "c9", created.ID)
	assert.Equal(t, conversation.TypeGroup, created.Type)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"bad request", http.StatusBadRequest, chat_errors.ErrValidation},
		{"unprocessable", http.StatusUnprocessableEntity, chat_errors.ErrValidation},
		{"not found", http.StatusNotFound, chat_errors.ErrConflict},
		{"conflict", http.StatusConflict, chat_errors.ErrConflict},
		{"gone", http.StatusGone, chat_errors.ErrConflict},
		{"unauthorized", http.StatusUnauthorized, chat_errors.ErrUnauthorized},
		{"server error", http.StatusInternalServerError, chat_errors.ErrNetwork},
		{"unavailable", http.StatusServiceUnavailable, chat_errors.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]string{"error": "nope", "code": "X"})
			})
			err := c.MarkRead(context.Background(), "c1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestTimeoutIsRetryableNetworkError(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.MarkRead(ctx, "c1")
	assert.ErrorIs(t, err, chat_errors.ErrNetwork)
	assert.True(t, chat_errors.IsRetryable(err))
}

func TestCancelledRequest(t *testing.T) {
	c, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := c.MarkRead(ctx, "c1")
	assert.ErrorIs(t, err, chat_errors.ErrCancelled)
	assert.False(t, chat_errors.IsRetryable(err))
}
