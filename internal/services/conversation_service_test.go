package services

import (
	"context"
	"testing"
	"time"

	"marketplace-chat/internal/api"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/store"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedConversations(st *store.Store, list ...conversation.Conversation) {
	st.Dispatch(store.UpsertConversations{Conversations: list})
}

func TestLoadConversationsMergesAndSorts(t *testing.T) {
	st := newTestStore()
	fake := &fakeConversationAPI{list: []conversation.Conversation{
		{ID: "c1", UpdatedAt: t0},
		{ID: "c2", UpdatedAt: t0.Add(time.Minute), Pinned: true},
	}}
	svc := NewConversationService(st, fake, nil)

	list, err := svc.LoadConversations(context.Background(), conversation.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)
	assert.Equal(t, list, svc.ListConversations(conversation.Filter{}))
}

func TestPinFailureRollsBack(t *testing.T) {
	st := newTestStore()
	seedConversations(st, conversation.Conversation{ID: "c1"})
	fake := &fakeConversationAPI{flagErr: chat_errors.ErrNetwork}
	svc := NewConversationService(st, fake, nil)

	err := svc.Pin(context.Background(), "c1")
	assert.ErrorIs(t, err, chat_errors.ErrNetwork)
	c, _ := st.Snapshot().Conversation("c1")
	assert.False(t, c.Pinned)
	assert.Zero(t, fake.listed)
}

func TestFlagAlreadySetSkipsNetwork(t *testing.T) {
	st := newTestStore()
	seedConversations(st, conversation.Conversation{ID: "c1", Muted: true})
	fake := &fakeConversationAPI{}
	svc := NewConversationService(st, fake, nil)

	require.NoError(t, svc.Mute(context.Background(), "c1"))
	assert.Empty(t, fake.flags)

	require.NoError(t, svc.Unmute(context.Background(), "c1"))
	require.NoError(t, svc.Archive(context.Background(), "c1"))
	assert.Equal(t, []string{"muted", "archived"}, fake.flags)

	c, _ := st.Snapshot().Conversation("c1")
	assert.False(t, c.Muted)
	assert.True(t, c.Archived)

	assert.ErrorIs(t, svc.Pin(context.Background(), "missing"), chat_errors.ErrNotFound)
	assert.ErrorIs(t, svc.SetFlag(context.Background(), "c1", "starred", true), chat_errors.ErrInvalidInput)
}

func TestConflictTriggersRefetch(t *testing.T) {
	st := newTestStore()
	seedConversations(st, conversation.Conversation{ID: "c1"})
	fake := &fakeConversationAPI{
		flagErr: chat_errors.ErrConflict,
		list:    []conversation.Conversation{{ID: "c1", Archived: true}},
	}
	svc := NewConversationService(st, fake, nil)

	err := svc.Archive(context.Background(), "c1")
	assert.ErrorIs(t, err, chat_errors.ErrConflict)
	assert.Equal(t, 1, fake.listed)
	c, _ := st.Snapshot().Conversation("c1")
	assert.True(t, c.Archived)
}

func TestMarkAsReadRestoresOnFailure(t *testing.T) {
	st := newTestStore()
	seedConversations(st, conversation.Conversation{ID: "c1", UnreadCount: 4})
	fake := &fakeConversationAPI{readErr: chat_errors.ErrNetwork}
	svc := NewConversationService(st, fake, nil)

	assert.Error(t, svc.MarkAsRead(context.Background(), "c1"))
	c, _ := st.Snapshot().Conversation("c1")
	assert.Equal(t, 4, c.UnreadCount)

	fake.readErr = nil
	require.NoError(t, svc.MarkAsRead(context.Background(), "c1"))
	require.NoError(t, svc.MarkAsRead(context.Background(), "c1"))
	assert.Equal(t, 2, fake.reads)
	c, _ = st.Snapshot().Conversation("c1")
	assert.Zero(t, c.UnreadCount)

	assert.ErrorIs(t, svc.MarkAsRead(context.Background(), "missing"), chat_errors.ErrNotFound)
}

func TestCreateConversation(t *testing.T) {
	st := newTestStore()
	fake := &fakeConversationAPI{created: conversation.Conversation{ID: "c9", Type: conversation.TypeDirect, Participants: []string{me, "u2"}}}
	svc := NewConversationService(st, fake, nil)

	_, err := svc.Create(context.Background(), api.CreateConversationInput{})
	assert.ErrorIs(t, err, chat_errors.ErrValidation)

	c, err := svc.Create(context.Background(), api.CreateConversationInput{Participants: []string{"u2"}})
	require.NoError(t, err)
	assert.Equal(t, "c9", c.ID)
	_, ok := st.Snapshot().Conversation("c9")
	assert.True(t, ok)
}

func TestSetActiveSuppressesUnread(t *testing.T) {
	st := newTestStore()
	seedConversations(st, conversation.Conversation{ID: "c1"})
	svc := NewConversationService(st, &fakeConversationAPI{}, nil)
	svc.SetActive("c1")
	assert.Equal(t, "c1", st.Snapshot().ActiveConversation)
}
