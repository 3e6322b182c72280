// Package composer holds per-conversation drafts: content, reply target,
// attachment uploads and the debounced typing signal.
package composer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/observer"
	"marketplace-chat/internal/services"
	"marketplace-chat/internal/storage"
	chat_errors "marketplace-chat/pkg/errors"
	"marketplace-chat/pkg/logger"

	"github.com/google/uuid"
)

const DefaultTypingTimeout = 3 * time.Second

// Sender is implemented by services.MessageService.
type Sender interface {
	SendMessage(ctx context.Context, in services.SendInput) (message.Message, error)
}

// Uploader is implemented by services.UploadService.
type Uploader interface {
	Upload(ctx context.Context, conversationID, attachmentID string, f storage.File, progress storage.ProgressFunc) (message.Attachment, error)
	MaxBytes() int64
}

// TypingEmitter receives typing transitions. It is called with the composer
// lock held and must not block or call back into the composer.
type TypingEmitter interface {
	EmitTyping(conversationID string, typing bool)
}

type Config struct {
	TypingTimeout time.Duration
}

type Composer struct {
	sender   Sender
	uploader Uploader
	typing   TypingEmitter
	cfg      Config
	logger   *logger.Logger
	broker   *observer.Broker
	newID    func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	drafts  map[string]*draft
	version uint64
	closed  bool
}

func New(sender Sender, uploader Uploader, typing TypingEmitter, cfg Config, l *logger.Logger) *Composer {
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = DefaultTypingTimeout
	}
	if l == nil {
		l = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Composer{
		sender:   sender,
		uploader: uploader,
		typing:   typing,
		cfg:      cfg,
		logger:   l.Named("composer"),
		broker:   observer.NewBroker(),
		newID:    uuid.NewString,
		ctx:      ctx,
		cancel:   cancel,
		drafts:   make(map[string]*draft),
	}
}

// Draft returns a snapshot of the conversation's draft; empty if none exists.
func (c *Composer) Draft(conversationID string) Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.drafts[conversationID]; ok {
		return d.snapshot(conversationID)
	}
	return (&draft{}).snapshot(conversationID)
}

// Subscribe notifies on draft changes of the given conversations, or of all
// conversations when none are given.
func (c *Composer) Subscribe(conversationIDs ...string) *observer.Subscription {
	if len(conversationIDs) == 0 {
		return c.broker.Subscribe(Topic)
	}
	filters := make([]string, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		filters = append(filters, DraftTopic(id))
	}
	return c.broker.Subscribe(filters...)
}

// SetContent replaces the draft text. The first non-empty content after idle
// emits typing started; empty content emits typing stopped. Every non-empty
// edit restarts the inactivity timer.
func (c *Composer) SetContent(conversationID, content string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	d := c.draftLocked(conversationID)
	changed := d.content != content
	d.content = content
	var typingChanged bool
	if content == "" {
		typingChanged = c.stopTypingLocked(conversationID, d)
	} else {
		typingChanged = c.startTypingLocked(conversationID, d)
	}
	v := c.bumpLocked(changed || typingChanged)
	c.mu.Unlock()
	c.publish(v, conversationID)
}

func (c *Composer) SetReplyTo(conversationID, messageID string) {
	c.mu.Lock()
	d := c.draftLocked(conversationID)
	v := c.bumpLocked(d.replyTo != messageID)
	d.replyTo = messageID
	c.mu.Unlock()
	c.publish(v, conversationID)
}

func (c *Composer) ClearReplyTo(conversationID string) {
	c.SetReplyTo(conversationID, "")
}

// AddAttachment queues f for upload. Oversized files are rejected before any
// upload starts.
func (c *Composer) AddAttachment(conversationID string, f storage.File) (DraftAttachment, error) {
	if f.Body == nil {
		return DraftAttachment{}, fmt.Errorf("%w: attachment has no content", chat_errors.ErrInvalidInput)
	}
	if limit := c.uploader.MaxBytes(); limit > 0 && f.Size > limit {
		return DraftAttachment{}, fmt.Errorf("%w: %s is %d bytes, limit %d", chat_errors.ErrAttachmentTooLarge, f.Name, f.Size, limit)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return DraftAttachment{}, chat_errors.ErrCancelled
	}
	d := c.draftLocked(conversationID)
	a := &draftAttachment{
		DraftAttachment: DraftAttachment{
			ID:          c.newID(),
			Name:        f.Name,
			ContentType: f.ContentType,
			Size:        f.Size,
			State:       AttachmentQueued,
		},
		file: f,
	}
	d.attachments = append(d.attachments, a)
	c.startUploadLocked(conversationID, a)
	out := a.DraftAttachment
	v := c.bumpLocked(true)
	c.mu.Unlock()
	c.publish(v, conversationID)
	return out, nil
}

// RemoveAttachment drops an attachment, cancelling its upload if running.
func (c *Composer) RemoveAttachment(conversationID, attachmentID string) error {
	c.mu.Lock()
	d, ok := c.drafts[conversationID]
	if !ok {
		c.mu.Unlock()
		return chat_errors.ErrNotFound
	}
	i, a := d.find(attachmentID)
	if a == nil {
		c.mu.Unlock()
		return chat_errors.ErrNotFound
	}
	a.abort()
	d.attachments = append(d.attachments[:i:i], d.attachments[i+1:]...)
	v := c.bumpLocked(true)
	c.mu.Unlock()
	c.publish(v, conversationID)
	return nil
}

// RetryAttachment restarts a failed upload.
func (c *Composer) RetryAttachment(conversationID, attachmentID string) error {
	c.mu.Lock()
	d, ok := c.drafts[conversationID]
	if !ok {
		c.mu.Unlock()
		return chat_errors.ErrNotFound
	}
	_, a := d.find(attachmentID)
	if a == nil {
		c.mu.Unlock()
		return chat_errors.ErrNotFound
	}
	if a.State != AttachmentFailed {
		c.mu.Unlock()
		return fmt.Errorf("%w: attachment is %s", chat_errors.ErrInvalidTransition, a.State)
	}
	c.startUploadLocked(conversationID, a)
	v := c.bumpLocked(true)
	c.mu.Unlock()
	c.publish(v, conversationID)
	return nil
}

// Send submits the draft through the Sender. Only one send per draft runs at
// a time. On success the submitted content, reply target and attachments are
// cleared; anything added while the send was in flight stays in the draft.
// Failed attachments are left out of the message and kept for retry.
func (c *Composer) Send(ctx context.Context, conversationID string) (message.Message, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return message.Message{}, chat_errors.ErrCancelled
	}
	d, ok := c.drafts[conversationID]
	if !ok {
		c.mu.Unlock()
		return message.Message{}, chat_errors.ErrEmptyMessage
	}
	if d.submitting {
		c.mu.Unlock()
		return message.Message{}, fmt.Errorf("%w: draft is already being sent", chat_errors.ErrInvalidTransition)
	}
	snap := d.snapshot(conversationID)
	if snap.Uploading() {
		c.mu.Unlock()
		return message.Message{}, chat_errors.ErrUploadsPending
	}
	ready := snap.Ready()
	if strings.TrimSpace(snap.Content) == "" && len(ready) == 0 {
		c.mu.Unlock()
		return message.Message{}, chat_errors.ErrEmptyMessage
	}
	d.submitting = true
	c.mu.Unlock()

	m, err := c.sender.SendMessage(ctx, services.SendInput{
		ConversationID: conversationID,
		Content:        snap.Content,
		Attachments:    ready,
		ReplyTo:        snap.ReplyTo,
	})

	c.mu.Lock()
	d.submitting = false
	if err != nil {
		c.mu.Unlock()
		return message.Message{}, err
	}
	if c.drafts[conversationID] != d {
		c.mu.Unlock()
		return m, nil
	}
	if d.content == snap.Content {
		d.content = ""
		c.stopTypingLocked(conversationID, d)
	}
	if d.replyTo == snap.ReplyTo {
		d.replyTo = ""
	}
	sent := make(map[string]bool, len(ready))
	for _, a := range snap.Attachments {
		if a.State == AttachmentReady {
			sent[a.ID] = true
		}
	}
	kept := d.attachments[:0:0]
	for _, a := range d.attachments {
		if a.State == AttachmentReady && sent[a.ID] {
			continue
		}
		kept = append(kept, a)
	}
	d.attachments = kept
	if d.empty() {
		delete(c.drafts, conversationID)
	}
	v := c.bumpLocked(true)
	c.mu.Unlock()
	c.publish(v, conversationID)
	return m, nil
}

// Leave stops the typing signal of a conversation the user navigated away
// from. The draft itself is kept.
func (c *Composer) Leave(conversationID string) {
	c.mu.Lock()
	var v uint64
	if d, ok := c.drafts[conversationID]; ok {
		v = c.bumpLocked(c.stopTypingLocked(conversationID, d))
	}
	c.mu.Unlock()
	c.publish(v, conversationID)
}

// Discard drops the draft and cancels its uploads.
func (c *Composer) Discard(conversationID string) {
	c.mu.Lock()
	var v uint64
	if d, ok := c.drafts[conversationID]; ok {
		c.stopTypingLocked(conversationID, d)
		for _, a := range d.attachments {
			a.abort()
		}
		delete(c.drafts, conversationID)
		v = c.bumpLocked(true)
	}
	c.mu.Unlock()
	c.publish(v, conversationID)
}

// Close stops every typing timer and cancels running uploads.
func (c *Composer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, d := range c.drafts {
		c.stopTypingLocked(id, d)
	}
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Composer) draftLocked(conversationID string) *draft {
	d, ok := c.drafts[conversationID]
	if !ok {
		d = &draft{}
		c.drafts[conversationID] = d
	}
	return d
}

func (c *Composer) bumpLocked(changed bool) uint64 {
	if !changed {
		return 0
	}
	c.version++
	return c.version
}

func (c *Composer) publish(version uint64, conversationID string) {
	if version == 0 {
		return
	}
	c.broker.Publish(version, DraftTopic(conversationID))
}

func (c *Composer) startTypingLocked(conversationID string, d *draft) bool {
	d.typingGen++
	gen := d.typingGen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(c.cfg.TypingTimeout, func() {
		c.typingIdle(conversationID, gen)
	})
	if d.typing {
		return false
	}
	d.typing = true
	c.emit(conversationID, true)
	return true
}

func (c *Composer) stopTypingLocked(conversationID string, d *draft) bool {
	d.typingGen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if !d.typing {
		return false
	}
	d.typing = false
	c.emit(conversationID, false)
	return true
}

func (c *Composer) typingIdle(conversationID string, gen uint64) {
	c.mu.Lock()
	d, ok := c.drafts[conversationID]
	if !ok || c.closed || d.typingGen != gen {
		c.mu.Unlock()
		return
	}
	v := c.bumpLocked(c.stopTypingLocked(conversationID, d))
	c.mu.Unlock()
	c.publish(v, conversationID)
}

func (c *Composer) emit(conversationID string, typing bool) {
	if c.typing != nil {
		c.typing.EmitTyping(conversationID, typing)
	}
}

func (c *Composer) startUploadLocked(conversationID string, a *draftAttachment) {
	a.abort()
	a.gen++
	a.State = AttachmentQueued
	a.Progress = 0
	a.Error = ""

	ctx, cancel := context.WithCancel(c.ctx)
	a.cancel = cancel
	gen, id, f := a.gen, a.ID, a.file

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.upload(ctx, conversationID, id, gen, f)
	}()
}

func (c *Composer) upload(ctx context.Context, conversationID, id string, gen uint64, f storage.File) {
	c.update(conversationID, id, gen, func(a *draftAttachment) {
		a.State = AttachmentUploading
	})
	if _, err := f.Body.Seek(0, io.SeekStart); err != nil {
		c.fail(conversationID, id, gen, err)
		return
	}

	uploaded, err := c.uploader.Upload(ctx, conversationID, id, f, func(p int) {
		c.update(conversationID, id, gen, func(a *draftAttachment) {
			if a.State == AttachmentUploading && p > a.Progress && p <= 100 {
				a.Progress = p
			}
		})
	})
	if err != nil {
		c.fail(conversationID, id, gen, err)
		return
	}
	uploaded.IsUploading = false
	uploaded.Progress = 100
	c.update(conversationID, id, gen, func(a *draftAttachment) {
		a.State = AttachmentReady
		a.Progress = 100
		a.Uploaded = uploaded
		a.cancel = nil
	})
}

func (c *Composer) fail(conversationID, id string, gen uint64, err error) {
	c.logger.Warnf("upload of %s in %s failed: %v", id, conversationID, err)
	c.update(conversationID, id, gen, func(a *draftAttachment) {
		a.State = AttachmentFailed
		a.Error = err.Error()
		a.cancel = nil
	})
}

// update applies fn unless the attachment was removed or restarted since gen.
func (c *Composer) update(conversationID, id string, gen uint64, fn func(a *draftAttachment)) {
	c.mu.Lock()
	d, ok := c.drafts[conversationID]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	_, a := d.find(id)
	if a == nil || a.gen != gen {
		c.mu.Unlock()
		return
	}
	before := a.DraftAttachment
	fn(a)
	v := c.bumpLocked(before != a.DraftAttachment)
	c.mu.Unlock()
	c.publish(v, conversationID)
}

func (a *draftAttachment) abort() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.gen++
}
