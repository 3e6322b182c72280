package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-chat/internal/api"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgAt(id string, min int) message.Message {
	return message.Message{ID: id, ConversationID: "c1", Timestamp: t0.Add(time.Duration(min) * time.Minute)}
}

func TestResyncReloadsActiveThread(t *testing.T) {
	st := newTestStore()
	convAPI := &fakeConversationAPI{list: []conversation.Conversation{{ID: "c1"}, {ID: "c2"}}}
	msgAPI := &fakeMessageAPI{pages: map[string]api.Page{
		"":   {HasMore: true, Messages: []message.Message{msgAt("m3", 3), msgAt("m4", 4)}},
		"m3": {HasMore: false, Messages: []message.Message{msgAt("m1", 1), msgAt("m2", 2)}},
	}}
	messages := newMessageService(st, ackConfirmer(nil), msgAPI)
	defer messages.Close()
	conversations := NewConversationService(st, convAPI, nil)
	conversations.SetActive("c1")

	_, err := messages.LoadMessages(context.Background(), "c1", "")
	require.NoError(t, err)
	_, err = messages.LoadOlder(context.Background(), "c1")
	require.NoError(t, err)

	// m5 arrived while the transport was down
	msgAPI.pages[""] = api.Page{HasMore: true, Messages: []message.Message{msgAt("m4", 4), msgAt("m5", 5)}}
	require.NoError(t, NewResyncer(st, conversations, messages, nil).Resync(context.Background()))

	snap := st.Snapshot()
	assert.Equal(t, 1, convAPI.listed)
	assert.Len(t, snap.Conversations, 2)
	assert.Equal(t, []string{"", "m3", ""}, msgAPI.cursors)

	var ids []string
	for _, m := range snap.Messages("c1") {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, ids)
	th := snap.Thread("c1")
	assert.Equal(t, "m1", th.Cursor)
	assert.False(t, th.HasMore)

	more, err := messages.LoadOlder(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, msgAPI.cursors, 3)
}

func TestResyncWithoutActiveConversation(t *testing.T) {
	st := newTestStore()
	convAPI := &fakeConversationAPI{listErr: chat_errors.Network(errors.New("connection refused"))}
	msgAPI := &fakeMessageAPI{}
	messages := newMessageService(st, ackConfirmer(nil), msgAPI)
	defer messages.Close()

	err := NewResyncer(st, NewConversationService(st, convAPI, nil), messages, nil).Resync(context.Background())
	assert.ErrorIs(t, err, chat_errors.ErrNetwork)
	assert.Equal(t, 1, convAPI.listed)
	assert.Empty(t, msgAPI.cursors)
}
