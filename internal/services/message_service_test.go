package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-chat/internal/api"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/store"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendOutcome struct {
	outcome  string
	attempts int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []sendOutcome
}

func (r *fakeRecorder) SendResult(outcome string, attempts int, elapsed time.Duration) {
	r.mu.Lock()
	r.seen = append(r.seen, sendOutcome{outcome, attempts})
	r.mu.Unlock()
}

func newMessageService(st *store.Store, confirmer Confirmer, msgAPI MessageAPI) *MessageService {
	if msgAPI == nil {
		msgAPI = &fakeMessageAPI{}
	}
	return NewMessageService(st, msgAPI, confirmer, MessageConfig{
		PageSize:           20,
		SendTimeout:        50 * time.Millisecond,
		RetryBackoff:       time.Millisecond,
		MaxAttachmentBytes: 1024,
	}, nil)
}

func ackConfirmer(gate <-chan struct{}) *fakeConfirmer {
	return &fakeConfirmer{fn: func(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return message.Message{}, chat_errors.Network(ctx.Err())
			}
		}
		return message.Message{ID: in.ClientID, ServerID: "srv-" + in.ClientID, ServerTimestamp: t0.Add(time.Second)}, nil
	}}
}

func TestSendMessageOptimisticThenDelivered(t *testing.T) {
	st := newTestStore()
	st.Dispatch(store.UpsertConversations{Conversations: []conversation.Conversation{{ID: "c1"}}})
	gate := make(chan struct{})
	svc := newMessageService(st, ackConfirmer(gate), nil)
	defer svc.Close()

	sent, err := svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, message.StatusSending, sent.Status)
	assert.Equal(t, me, sent.SenderID)
	assert.Equal(t, message.TypeText, sent.Type)

	msgs := st.Snapshot().Messages("c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, message.StatusSending, msgs[0].Status)

	close(gate)
	svc.Wait()

	msgs = st.Snapshot().Messages("c1")
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID, msgs[0].ID)
	assert.Equal(t, message.StatusDelivered, msgs[0].Status)
	assert.Equal(t, "srv-"+sent.ID, msgs[0].ServerID)
}

func TestSendValidationNeverTouchesNetwork(t *testing.T) {
	st := newTestStore()
	confirmer := ackConfirmer(nil)
	svc := newMessageService(st, confirmer, nil)
	defer svc.Close()

	_, err := svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Content: "   "})
	assert.ErrorIs(t, err, chat_errors.ErrEmptyMessage)
	assert.ErrorIs(t, err, chat_errors.ErrValidation)

	_, err = svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Attachments: []message.Attachment{
		{ID: "a1", URL: "https://x/a1", SizeBytes: 4096},
	}})
	assert.ErrorIs(t, err, chat_errors.ErrAttachmentTooLarge)

	_, err = svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Attachments: []message.Attachment{
		{ID: "a1", IsUploading: true},
	}})
	assert.ErrorIs(t, err, chat_errors.ErrUploadsPending)

	svc.Wait()
	assert.Empty(t, st.Snapshot().Messages("c1"))
	assert.Zero(t, confirmer.Calls())
}

func TestAttachmentOnlyMessageType(t *testing.T) {
	st := newTestStore()
	svc := newMessageService(st, ackConfirmer(nil), nil)
	defer svc.Close()

	sent, err := svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Attachments: []message.Attachment{
		{ID: "a1", Kind: message.MediaImage, URL: "https://x/a1", SizeBytes: 10},
	}})
	require.NoError(t, err)
	assert.Equal(t, message.TypeImage, sent.Type)
}

func TestNetworkErrorRetriedOnceThenFailed(t *testing.T) {
	st := newTestStore()
	confirmer := &fakeConfirmer{fn: func(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
		return message.Message{}, chat_errors.Network(errors.New("connection reset"))
	}}
	rec := &fakeRecorder{}
	svc := newMessageService(st, confirmer, nil)
	svc.SetRecorder(rec)
	defer svc.Close()

	sent, err := svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Content: "hi"})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, 2, confirmer.Calls())
	m, ok := st.Snapshot().Message("c1", sent.ID)
	require.True(t, ok)
	assert.Equal(t, message.StatusFailed, m.Status)
	assert.Contains(t, m.Error, "connection reset")
	assert.Equal(t, []sendOutcome{{"failed", 2}}, rec.seen)
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	st := newTestStore()
	var calls int
	var mu sync.Mutex
	confirmer := &fakeConfirmer{fn: func(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return message.Message{}, chat_errors.ErrNetwork
		}
		return message.Message{ID: in.ClientID, ServerID: "srv"}, nil
	}}
	svc := newMessageService(st, confirmer, nil)
	defer svc.Close()

	sent, _ := svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Content: "hi"})
	svc.Wait()

	m, _ := st.Snapshot().Message("c1", sent.ID)
	assert.Equal(t, message.StatusDelivered, m.Status)
}

func TestServerValidationErrorNotRetried(t *testing.T) {
	st := newTestStore()
	confirmer := &fakeConfirmer{fn: func(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
		return message.Message{}, chat_errors.ErrValidation
	}}
	svc := newMessageService(st, confirmer, nil)
	defer svc.Close()

	sent, _ := svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Content: "hi"})
	svc.Wait()

	assert.Equal(t, 1, confirmer.Calls())
	m, _ := st.Snapshot().Message("c1", sent.ID)
	assert.Equal(t, message.StatusFailed, m.Status)
}

func TestPerAttemptTimeout(t *testing.T) {
	st := newTestStore()
	confirmer := ackConfirmer(make(chan struct{}))
	svc := newMessageService(st, confirmer, nil)
	defer svc.Close()

	sent, _ := svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Content: "hi"})
	svc.Wait()

	assert.Equal(t, 2, confirmer.Calls())
	m, _ := st.Snapshot().Message("c1", sent.ID)
	assert.Equal(t, message.StatusFailed, m.Status)
}

func TestManualRetryAfterFailure(t *testing.T) {
	st := newTestStore()
	var fail = true
	var mu sync.Mutex
	confirmer := &fakeConfirmer{fn: func(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return message.Message{}, chat_errors.ErrNetwork
		}
		return message.Message{ID: in.ClientID}, nil
	}}
	svc := newMessageService(st, confirmer, nil)
	defer svc.Close()

	sent, _ := svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Content: "hi"})
	svc.Wait()

	_, err := svc.RetryMessage(context.Background(), "c1", "missing")
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)

	mu.Lock()
	fail = false
	mu.Unlock()
	retried, err := svc.RetryMessage(context.Background(), "c1", sent.ID)
	require.NoError(t, err)
	assert.Equal(t, message.StatusSending, retried.Status)
	svc.Wait()

	m, _ := st.Snapshot().Message("c1", sent.ID)
	assert.Equal(t, message.StatusDelivered, m.Status)

	_, err = svc.RetryMessage(context.Background(), "c1", sent.ID)
	assert.ErrorIs(t, err, chat_errors.ErrInvalidTransition)
}

func TestCancelDiscardsLateConfirmation(t *testing.T) {
	st := newTestStore()
	release := make(chan struct{})
	confirmer := &fakeConfirmer{fn: func(ctx context.Context, in events.SendMessagePayload) (message.Message, error) {
		<-release
		return message.Message{ID: in.ClientID}, nil
	}}
	svc := newMessageService(st, confirmer, nil)
	svc.cfg.SendTimeout = time.Second
	defer svc.Close()

	sent, _ := svc.SendMessage(context.Background(), SendInput{ConversationID: "c1", Content: "hi"})
	require.Eventually(t, func() bool { return confirmer.Calls() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, svc.CancelMessage("c1", sent.ID))
	close(release)
	svc.Wait()

	assert.Empty(t, st.Snapshot().Messages("c1"))
	assert.ErrorIs(t, svc.CancelMessage("c1", sent.ID), chat_errors.ErrNotFound)
}

func TestUpdateMessageNoopWhenMissing(t *testing.T) {
	st := newTestStore()
	svc := newMessageService(st, ackConfirmer(nil), nil)
	defer svc.Close()

	content := "x"
	assert.False(t, svc.UpdateMessage("c1", "nope", message.Patch{Content: &content}))

	st.Dispatch(store.MessageReceived{Message: message.Message{ID: "m1", ConversationID: "c1", SenderID: "u2", Content: "a", Timestamp: t0}})
	assert.True(t, svc.UpdateMessage("c1", "m1", message.Patch{Content: &content}))
}

func TestToggleReactionSettlesAndRollsBack(t *testing.T) {
	st := newTestStore()
	st.Dispatch(store.MessageReceived{Message: message.Message{ID: "m1", ServerID: "srv-1", ConversationID: "c1", SenderID: "u2", Timestamp: t0}})
	msgAPI := &fakeMessageAPI{added: true}
	svc := newMessageService(st, ackConfirmer(nil), msgAPI)
	defer svc.Close()

	added, err := svc.ToggleReaction(context.Background(), "c1", "m1", "👍")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "srv-1", msgAPI.reactedID)
	m, _ := st.Snapshot().Message("c1", "m1")
	assert.True(t, message.HasReaction(m.Reactions, me, "👍"))

	msgAPI.reactErr = chat_errors.ErrNetwork
	_, err = svc.ToggleReaction(context.Background(), "c1", "m1", "👍")
	assert.ErrorIs(t, err, chat_errors.ErrNetwork)
	m, _ = st.Snapshot().Message("c1", "m1")
	assert.True(t, message.HasReaction(m.Reactions, me, "👍"))

	_, err = svc.ToggleReaction(context.Background(), "c1", "missing", "👍")
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestLoadMessagesFollowsCursor(t *testing.T) {
	st := newTestStore()
	msgAPI := &fakeMessageAPI{pages: map[string]api.Page{
		"": {HasMore: true, Messages: []message.Message{
			{ID: "m3", ConversationID: "c1", Timestamp: t0.Add(3 * time.Minute)},
			{ID: "m4", ConversationID: "c1", Timestamp: t0.Add(4 * time.Minute)},
		}},
		"m3": {HasMore: false, Messages: []message.Message{
			{ID: "m1", ConversationID: "c1", Timestamp: t0.Add(1 * time.Minute)},
			{ID: "m2", ConversationID: "c1", Timestamp: t0.Add(2 * time.Minute)},
		}},
	}}
	svc := newMessageService(st, ackConfirmer(nil), msgAPI)
	defer svc.Close()

	more, err := svc.LoadMessages(context.Background(), "c1", "")
	require.NoError(t, err)
	assert.True(t, more)

	more, err = svc.LoadOlder(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, more)

	more, err = svc.LoadOlder(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, more)

	assert.Equal(t, []string{"", "m3"}, msgAPI.cursors)
	var ids []string
	for _, m := range st.Snapshot().Messages("c1") {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids)
}
