package services

import (
	"context"
	"fmt"
	"io"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/storage"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"
)

// ObjectStore is implemented by storage.Client.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.ReadSeeker, size int64, progress storage.ProgressFunc) (storage.Object, error)
}

// UploadService stores composer attachments and returns the uploaded record.
type UploadService struct {
	objects  ObjectStore
	maxBytes int64
	logger   *logger.Logger
}

func NewUploadService(objects ObjectStore, maxBytes int64, l *logger.Logger) *UploadService {
	if l == nil {
		l = logger.NewNop()
	}
	return &UploadService{objects: objects, maxBytes: maxBytes, logger: l.Named("uploads")}
}

func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

func (s *UploadService) Upload(ctx context.Context, conversationID, attachmentID string, f storage.File, progress storage.ProgressFunc) (message.Attachment, error) {
	if f.Body == nil {
		return message.Attachment{}, fmt.Errorf("%w: attachment has no content", chat_errors.ErrInvalidInput)
	}
	if s.maxBytes > 0 && f.Size > s.maxBytes {
		return message.Attachment{}, fmt.Errorf("%w: %s is %d bytes", chat_errors.ErrAttachmentTooLarge, f.Name, f.Size)
	}
	if s.objects == nil {
		return message.Attachment{}, fmt.Errorf("%w: attachment storage is not configured", chat_errors.ErrNetwork)
	}

	key := storage.ObjectKey(conversationID, attachmentID, f.Name)
	obj, err := s.objects.Upload(ctx, key, f.ContentType, f.Body, f.Size, progress)
	if err != nil {
		s.logger.ErrorCtx(logger.WithConversation(ctx, conversationID), "upload failed: "+err.Error())
		if ctx.Err() != nil {
			return message.Attachment{}, chat_errors.ErrCancelled
		}
		return message.Attachment{}, chat_errors.Network(err)
	}
	return message.Attachment{
		ID:        attachmentID,
		Kind:      message.KindFromMime(f.ContentType),
		URL:       obj.URL,
		Name:      f.Name,
		MimeType:  f.ContentType,
		SizeBytes: f.Size,
		Progress:  100,
	}, nil
}
