package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/storage"
	"marketplace-chat/internal/transport"
	chat_errors "marketplace-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	key string
	err error
}

func (f *fakeObjectStore) Upload(ctx context.Context, key, contentType string, body io.ReadSeeker, size int64, progress storage.ProgressFunc) (storage.Object, error) {
	f.key = key
	if f.err != nil {
		return storage.Object{}, f.err
	}
	if progress != nil {
		progress(100)
	}
	return storage.Object{Key: key, URL: "https://cdn.example.com/" + key, Size: size}, nil
}

func file(name, contentType, body string) storage.File {
	return storage.File{Name: name, ContentType: contentType, Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestUploadReturnsReadyAttachment(t *testing.T) {
	objects := &fakeObjectStore{}
	svc := NewUploadService(objects, 1024, nil)

	var last int
	att, err := svc.Upload(context.Background(), "c1", "a1", file("photo.png", "image/png", "pngdata"), func(p int) { last = p })
	require.NoError(t, err)
	assert.Equal(t, "attachments/c1/a1/photo.png", objects.key)
	assert.Equal(t, message.MediaImage, att.Kind)
	assert.Equal(t, "https://cdn.example.com/attachments/c1/a1/photo.png", att.URL)
	assert.False(t, att.IsUploading)
	assert.Equal(t, 100, last)
}

func TestUploadRejectsOversizeBeforeStoring(t *testing.T) {
	objects := &fakeObjectStore{}
	svc := NewUploadService(objects, 4, nil)

	_, err := svc.Upload(context.Background(), "c1", "a1", file("big.bin", "", "too large"), nil)
	assert.ErrorIs(t, err, chat_errors.ErrAttachmentTooLarge)
	assert.Empty(t, objects.key)
}

func TestUploadFailureIsRetryable(t *testing.T) {
	svc := NewUploadService(&fakeObjectStore{err: errors.New("503 slow down")}, 0, nil)
	_, err := svc.Upload(context.Background(), "c1", "a1", file("a.txt", "text/plain", "x"), nil)
	assert.True(t, chat_errors.IsRetryable(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Upload(ctx, "c1", "a1", file("a.txt", "text/plain", "x"), nil)
	assert.ErrorIs(t, err, chat_errors.ErrCancelled)
}

func TestTypingNotifierSkipsWhileDisconnected(t *testing.T) {
	adapter := transport.NewAdapter(nil, transport.Config{}, nil)
	n := NewTypingNotifier(adapter, me, nil)
	n.EmitTyping("c1", true)
	assert.Zero(t, adapter.QueueLen())
}
