package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"marketplace-chat/internal/api"
	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/events"
	"marketplace-chat/internal/store"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// MessageAPI is the part of the contract client used for history and reactions.
type MessageAPI interface {
	ListMessages(ctx context.Context, conversationID, cursor string, limit int) (api.Page, error)
	ToggleReaction(ctx context.Context, conversationID, messageID, emoji string) (bool, error)
}

// SendRecorder receives the outcome of every send confirmation.
type SendRecorder interface {
	SendResult(outcome string, attempts int, elapsed time.Duration)
}

type MessageConfig struct {
	PageSize           int
	SendTimeout        time.Duration
	RetryBackoff       time.Duration
	MaxAttachmentBytes int64
}

// SendInput is a send intent from the UI or the composer.
type SendInput struct {
	ConversationID string
	Content        string
	Type           message.Type
	Attachments    []message.Attachment
	ReplyTo        string
}

type MessageService struct {
	store     *store.Store
	api       MessageAPI
	confirmer Confirmer
	cfg       MessageConfig
	logger    *logger.Logger
	recorder  SendRecorder
	newID     func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[string]*inflightSend
}

type inflightSend struct {
	cancel context.CancelFunc
}

func NewMessageService(st *store.Store, messageAPI MessageAPI, confirmer Confirmer, cfg MessageConfig, l *logger.Logger) *MessageService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 30
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if l == nil {
		l = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MessageService{
		store:     st,
		api:       messageAPI,
		confirmer: confirmer,
		cfg:       cfg,
		logger:    l.Named("messages"),
		newID:     uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
		inflight:  make(map[string]*inflightSend),
	}
}

func (s *MessageService) SetRecorder(r SendRecorder) {
	s.recorder = r
}

// LoadMessages fetches the page older than cursor (the newest page when
// cursor is empty), merges it into the thread and reports whether older
// history remains.
func (s *MessageService) LoadMessages(ctx context.Context, conversationID, cursor string) (bool, error) {
	if conversationID == "" {
		return false, fmt.Errorf("%w: conversation id is required", chat_errors.ErrInvalidInput)
	}
	page, err := s.api.ListMessages(ctx, conversationID, cursor, s.cfg.PageSize)
	if err != nil {
		return false, err
	}
	st := s.store.Dispatch(store.PageLoaded{
		ConversationID: conversationID,
		From:           cursor,
		Messages:       page.Messages,
		NextCursor:     page.NextCursor,
		HasMore:        page.HasMore,
	})
	return st.Thread(conversationID).HasMore, nil
}

// LoadOlder continues backwards from the thread's current cursor.
func (s *MessageService) LoadOlder(ctx context.Context, conversationID string) (bool, error) {
	t := s.store.Snapshot().Thread(conversationID)
	if t.Loaded && !t.HasMore {
		return false, nil
	}
	return s.LoadMessages(ctx, conversationID, t.Cursor)
}

// Validate checks a send without touching the store or the network.
func (s *MessageService) Validate(in SendInput) error {
	if in.ConversationID == "" {
		return fmt.Errorf("%w: conversation id is required", chat_errors.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Content) == "" && len(in.Attachments) == 0 {
		return chat_errors.ErrEmptyMessage
	}
	if in.Type != "" && !in.Type.Valid() {
		return fmt.Errorf("%w: unknown message type %q", chat_errors.ErrInvalidInput, in.Type)
	}
	for _, a := range in.Attachments {
		if a.IsUploading || a.URL == "" {
			return chat_errors.ErrUploadsPending
		}
		if s.cfg.MaxAttachmentBytes > 0 && a.SizeBytes > s.cfg.MaxAttachmentBytes {
			return fmt.Errorf("%w: %s is %d bytes", chat_errors.ErrAttachmentTooLarge, a.Name, a.SizeBytes)
		}
	}
	return nil
}

// SendMessage inserts the message optimistically with status sending and
// confirms it in the background. Validation errors are returned before the
// store or the network is touched.
func (s *MessageService) SendMessage(ctx context.Context, in SendInput) (message.Message, error) {
	if err := s.Validate(in); err != nil {
		return message.Message{}, err
	}
	typ := in.Type
	if typ == "" {
		typ = message.TypeText
		if strings.TrimSpace(in.Content) == "" {
			typ = message.TypeForAttachments(in.Attachments)
		}
	}

	m := message.Message{
		ID:             s.newID(),
		ConversationID: in.ConversationID,
		SenderID:       s.store.LocalUserID(),
		Type:           typ,
		Content:        in.Content,
		Status:         message.StatusSending,
		ReplyTo:        in.ReplyTo,
		Attachments:    append([]message.Attachment(nil), in.Attachments...),
		Timestamp:      s.store.Now(),
	}
	st := s.store.Dispatch(store.AddLocalMessage{Message: m})
	gen := st.PendingGeneration(m.ID)
	stored, _ := st.Message(m.ConversationID, m.ID)

	s.logger.InfoCtx(logger.WithConversation(ctx, m.ConversationID), "message queued: "+m.ID)
	s.startConfirm(stored, gen)
	return stored, nil
}

// RetryMessage re-sends a failed message under a new generation.
func (s *MessageService) RetryMessage(ctx context.Context, conversationID, messageID string) (message.Message, error) {
	m, ok := s.store.Snapshot().Message(conversationID, messageID)
	if !ok {
		return message.Message{}, chat_errors.ErrNotFound
	}
	if !m.Status.CanRetry() {
		return message.Message{}, fmt.Errorf("%w: message is %s", chat_errors.ErrInvalidTransition, m.Status)
	}
	st := s.store.Dispatch(store.RetryMessage{ConversationID: conversationID, MessageID: m.ID})
	m, _ = st.Message(conversationID, m.ID)
	if m.Status != message.StatusSending {
		return m, chat_errors.ErrInvalidTransition
	}
	s.logger.InfoCtx(logger.WithConversation(ctx, conversationID), "message retry: "+m.ID)
	s.startConfirm(m, st.PendingGeneration(m.ID))
	return m, nil
}

// CancelMessage aborts a pending or failed send and removes it. A late
// confirmation is discarded by the generation guard.
func (s *MessageService) CancelMessage(conversationID, messageID string) error {
	m, ok := s.store.Snapshot().Message(conversationID, messageID)
	if !ok {
		return chat_errors.ErrNotFound
	}
	if m.Status != message.StatusSending && m.Status != message.StatusFailed {
		return fmt.Errorf("%w: message is already %s", chat_errors.ErrInvalidTransition, m.Status)
	}
	s.mu.Lock()
	if f, ok := s.inflight[m.ID]; ok {
		f.cancel()
		delete(s.inflight, m.ID)
	}
	s.mu.Unlock()
	s.store.Dispatch(store.RemoveMessage{ConversationID: conversationID, MessageID: m.ID})
	return nil
}

// UpdateMessage applies patch and reports whether anything changed. It is a
// no-op for messages no longer in the window.
func (s *MessageService) UpdateMessage(conversationID, messageID string, patch message.Patch) bool {
	before := s.store.Snapshot().Version
	return s.store.Dispatch(store.UpdateMessage{ConversationID: conversationID, MessageID: messageID, Patch: patch}).Version != before
}

// ToggleReaction flips the local user's emoji reaction optimistically and
// settles it with the server's answer, rolling back on failure.
func (s *MessageService) ToggleReaction(ctx context.Context, conversationID, messageID, emoji string) (bool, error) {
	if strings.TrimSpace(emoji) == "" {
		return false, fmt.Errorf("%w: emoji is required", chat_errors.ErrInvalidInput)
	}
	m, ok := s.store.Snapshot().Message(conversationID, messageID)
	if !ok {
		return false, chat_errors.ErrNotFound
	}
	me := s.store.LocalUserID()
	had := message.HasReaction(m.Reactions, me, emoji)
	r := message.Reaction{MessageID: m.ID, UserID: me, Emoji: emoji, CreatedAt: s.store.Now()}
	s.store.Dispatch(store.ToggleReaction{ConversationID: conversationID, Reaction: r})

	remoteID := m.ServerID
	if remoteID == "" {
		remoteID = m.ID
	}
	added, err := s.api.ToggleReaction(ctx, conversationID, remoteID, emoji)
	if err != nil {
		s.store.Dispatch(store.SetReaction{ConversationID: conversationID, Reaction: r, Present: had})
		return had, err
	}
	s.store.Dispatch(store.SetReaction{ConversationID: conversationID, Reaction: r, Present: added})
	return added, nil
}

// Wait blocks until every background confirmation has settled.
func (s *MessageService) Wait() {
	s.wg.Wait()
}

// Close aborts background confirmations and waits for them to exit.
func (s *MessageService) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *MessageService) startConfirm(m message.Message, gen uint64) {
	if gen == 0 {
		return
	}
	ctx, cancel := context.WithCancel(s.ctx)
	f := &inflightSend{cancel: cancel}
	s.mu.Lock()
	if prev, ok := s.inflight[m.ID]; ok {
		prev.cancel()
	}
	s.inflight[m.ID] = f
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			if s.inflight[m.ID] == f {
				delete(s.inflight, m.ID)
			}
			s.mu.Unlock()
			cancel()
		}()
		s.confirm(ctx, m, gen)
	}()
}

// confirm makes at most two attempts: the first and one retry after the
// backoff interval. Only retryable errors are retried.
func (s *MessageService) confirm(ctx context.Context, m message.Message, gen uint64) {
	payload := events.SendMessagePayload{
		ConversationID: m.ConversationID,
		ClientID:       m.ID,
		Content:        m.Content,
		Type:           m.Type,
		Attachments:    events.AttachmentsPayload(m.Attachments),
		ReplyTo:        m.ReplyTo,
	}

	start := time.Now()
	attempts := 0
	var confirmed message.Message
	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		defer cancel()
		res, err := s.confirmer.Confirm(attemptCtx, payload)
		if err != nil {
			if ctx.Err() != nil || !chat_errors.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			s.logger.Warnf("send attempt %d for %s failed: %v", attempts, m.ID, err)
			return err
		}
		confirmed = res
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryBackoff
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, 1), ctx))

	if ctx.Err() != nil {
		// cancelled by the user or by Close; the store already dropped it
		s.record("cancelled", attempts, start)
		return
	}
	if err != nil {
		s.logger.Errorf("send %s failed after %d attempts: %v", m.ID, attempts, err)
		s.store.Dispatch(store.MessageFailed{
			ConversationID: m.ConversationID,
			MessageID:      m.ID,
			Generation:     gen,
			Reason:         failureReason(err),
		})
		s.record("failed", attempts, start)
		return
	}
	s.store.Dispatch(store.MessageConfirmed{
		ConversationID: m.ConversationID,
		MessageID:      m.ID,
		Generation:     gen,
		Confirmed:      confirmed,
	})
	s.record("delivered", attempts, start)
}

func (s *MessageService) record(outcome string, attempts int, start time.Time) {
	if s.recorder != nil {
		s.recorder.SendResult(outcome, attempts, time.Since(start))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, chat_errors.ErrValidation):
		return "rejected: " + err.Error()
	case errors.Is(err, chat_errors.ErrConflict):
		return "conversation unavailable"
	default:
		return err.Error()
	}
}
