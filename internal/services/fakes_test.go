package services

import (
	"context"
	"sync"
	"time"

	"marketplace-chat/internal/api"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/store"
)

const me = "user-me"

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore() *store.Store {
	return store.New(me, store.WithClock(func() time.Time { return t0 }))
}

type confirmFunc func(ctx context.Context, in events.SendMessagePayload) (message.Message, error)

type fakeConfirmer struct {
	mu    sync.Mutex
	calls int
	fn    confirmFunc
}

func (f *fakeConfirmer) Confirm(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, in)
}

func (f *fakeConfirmer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMessageAPI struct {
	pages     map[string]api.Page
	cursors   []string
	added     bool
	reactErr  error
	reactedID string
}

func (f *fakeMessageAPI) ListMessages(ctx context.Context, conversationID, cursor string, limit int) (api.Page, error) {
	f.cursors = append(f.cursors, cursor)
	return f.pages[cursor], nil
}

func (f *fakeMessageAPI) ToggleReaction(ctx context.Context, conversationID, messageID, emoji string) (bool, error) {
	f.reactedID = messageID
	if f.reactErr != nil {
		return false, f.reactErr
	}
	return f.added, nil
}

type fakeConversationAPI struct {
	list    []conversation.Conversation
	listErr error
	listed  int
	readErr error
	reads   int
	flagErr error
	flags   []string
	created conversation.Conversation
}

func (f *fakeConversationAPI) ListConversations(ctx context.Context, filter conversation.Filter) ([]conversation.Conversation, error) {
	f.listed++
	return f.list, f.listErr
}

func (f *fakeConversationAPI) MarkRead(ctx context.Context, conversationID string) error {
	f.reads++
	return f.readErr
}

func (f *fakeConversationAPI) SetFlag(ctx context.Context, conversationID string, flag conversation.Flag, value bool) error {
	f.flags = append(f.flags, string(flag))
	return f.flagErr
}

func (f *fakeConversationAPI) CreateConversation(ctx context.Context, in api.CreateConversationInput) (conversation.Conversation, error) {
	return f.created, nil
}
