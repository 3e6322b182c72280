package services

import (
	"context"
	"errors"
	"fmt"

	"marketplace-chat/internal/api"
	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/store"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"
)

// ConversationAPI is the part of the contract client used for conversation metadata.
type ConversationAPI interface {
	ListConversations(ctx context.Context, f conversation.Filter) ([]conversation.Conversation, error)
	MarkRead(ctx context.Context, conversationID string) error
	SetFlag(ctx context.Context, conversationID string, flag conversation.Flag, value bool) error
	CreateConversation(ctx context.Context, in api.CreateConversationInput) (conversation.Conversation, error)
}

type ConversationService struct {
	store  *store.Store
	api    ConversationAPI
	logger *logger.Logger
}

func NewConversationService(st *store.Store, conversationAPI ConversationAPI, l *logger.Logger) *ConversationService {
	if l == nil {
		l = logger.NewNop()
	}
	return &ConversationService{store: st, api: conversationAPI, logger: l.Named("conversations")}
}

// ListConversations reads the filtered, sorted list from the store.
func (s *ConversationService) ListConversations(f conversation.Filter) []conversation.Conversation {
	return s.store.Snapshot().ListConversations(f)
}

// LoadConversations fetches the list from the server and merges it.
func (s *ConversationService) LoadConversations(ctx context.Context, f conversation.Filter) ([]conversation.Conversation, error) {
	list, err := s.api.ListConversations(ctx, f)
	if err != nil {
		return nil, err
	}
	st := s.store.Dispatch(store.UpsertConversations{Conversations: list})
	return st.ListConversations(f), nil
}

func (s *ConversationService) SetActive(conversationID string) {
	s.store.Dispatch(store.SetActiveConversation{ConversationID: conversationID})
}

// MarkAsRead zeroes the unread counter and confirms it with the server. On
// failure the previous count is restored unless a newer mark-as-read ran.
func (s *ConversationService) MarkAsRead(ctx context.Context, conversationID string) error {
	c, ok := s.store.Snapshot().Conversation(conversationID)
	if !ok {
		return chat_errors.ErrNotFound
	}
	if c.UnreadCount == 0 {
		return nil
	}
	st := s.store.Dispatch(store.MarkConversationRead{ConversationID: conversationID})
	gen := st.ReadGen[conversationID]

	if err := s.api.MarkRead(ctx, conversationID); err != nil {
		s.store.Dispatch(store.RestoreUnread{ConversationID: conversationID, Count: c.UnreadCount, Generation: gen})
		s.onFailure(ctx, "mark read", conversationID, err)
		return err
	}
	return nil
}

func (s *ConversationService) Pin(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, conversation.FlagPinned, true)
}

func (s *ConversationService) Unpin(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, conversation.FlagPinned, false)
}

func (s *ConversationService) Mute(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, conversation.FlagMuted, true)
}

func (s *ConversationService) Unmute(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, conversation.FlagMuted, false)
}

func (s *ConversationService) Archive(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, conversation.FlagArchived, true)
}

func (s *ConversationService) Unarchive(ctx context.Context, id string) error {
	return s.setFlag(ctx, id, conversation.FlagArchived, false)
}

// SetFlag sets one flag by name; see Pin, Mute and Archive.
func (s *ConversationService) SetFlag(ctx context.Context, id string, flag conversation.Flag, value bool) error {
	if !flag.Valid() {
		return fmt.Errorf("%w: unknown flag %q", chat_errors.ErrInvalidInput, flag)
	}
	return s.setFlag(ctx, id, flag, value)
}

func (s *ConversationService) setFlag(ctx context.Context, id string, flag conversation.Flag, value bool) error {
	c, ok := s.store.Snapshot().Conversation(id)
	if !ok {
		return chat_errors.ErrNotFound
	}
	if c.Get(flag) == value {
		return nil
	}
	st := s.store.Dispatch(store.SetConversationFlag{ConversationID: id, Flag: flag, Value: value})
	gen := st.FlagGeneration(id, flag)

	if err := s.api.SetFlag(ctx, id, flag, value); err != nil {
		s.store.Dispatch(store.RollbackConversationFlag{ConversationID: id, Flag: flag, Value: !value, Generation: gen})
		s.onFailure(ctx, "set "+string(flag), id, err)
		return err
	}
	return nil
}

// Create creates a conversation on the server and adds it to the store.
func (s *ConversationService) Create(ctx context.Context, in api.CreateConversationInput) (conversation.Conversation, error) {
	if in.Type == "" {
		in.Type = conversation.TypeDirect
	}
	if !in.Type.Valid() {
		return conversation.Conversation{}, fmt.Errorf("%w: unknown conversation type %q", chat_errors.ErrInvalidInput, in.Type)
	}
	if len(in.Participants) == 0 {
		return conversation.Conversation{}, fmt.Errorf("%w: participants are required", chat_errors.ErrInvalidInput)
	}
	c, err := s.api.CreateConversation(ctx, in)
	if err != nil {
		return conversation.Conversation{}, err
	}
	st := s.store.Dispatch(store.UpsertConversations{Conversations: []conversation.Conversation{c}})
	created, _ := st.Conversation(c.ID)
	return created, nil
}

// onFailure logs a rolled back mutation and refetches on conflict, since the
// conversation was changed or removed elsewhere.
func (s *ConversationService) onFailure(ctx context.Context, op, id string, err error) {
	ctx = logger.WithConversation(ctx, id)
	s.logger.WarnCtx(ctx, op+" rolled back: "+err.Error())
	if !errors.Is(err, chat_errors.ErrConflict) {
		return
	}
	if _, ferr := s.LoadConversations(ctx, conversation.Filter{}); ferr != nil {
		s.logger.WarnCtx(ctx, "refetch after conflict failed: "+ferr.Error())
	}
}
