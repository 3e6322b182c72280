package services

import (
	"context"
	"errors"
	"fmt"

	"marketplace-chat/internal/domain/conversation"
	"marketplace-chat/internal/store"
	"marketplace-chat/pkg/logger"
)

// Resyncer reloads server state that inbound events may have missed while the
// transport was down: the conversation list and the newest page of the
// conversation being viewed.
type Resyncer struct {
	store         *store.Store
	conversations *ConversationService
	messages      *MessageService
	logger        *logger.Logger
}

func NewResyncer(st *store.Store, conversations *ConversationService, messages *MessageService, l *logger.Logger) *Resyncer {
	if l == nil {
		l = logger.NewNop()
	}
	return &Resyncer{store: st, conversations: conversations, messages: messages, logger: l.Named("resync")}
}

// Resync runs both reloads; a failure of one does not skip the other.
func (r *Resyncer) Resync(ctx context.Context) error {
	var errs []error
	if _, err := r.conversations.LoadConversations(ctx, conversation.Filter{}); err != nil {
		errs = append(errs, fmt.Errorf("conversations: %w", err))
	}
	if active := r.store.Snapshot().ActiveConversation; active != "" {
		if _, err := r.messages.LoadMessages(ctx, active, ""); err != nil {
			errs = append(errs, fmt.Errorf("messages of %s: %w", active, err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		r.logger.Warnf("resync failed: %v", err)
	}
	return err
}
