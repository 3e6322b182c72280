package composer

import (
	"time"

	"marketplace-chat/internal/domain/message"
	"marketplace-chat/internal/storage"
)

// AttachmentState is the upload lifecycle of a draft attachment.
type AttachmentState string

const (
	AttachmentQueued    AttachmentState = "queued"
	AttachmentUploading AttachmentState = "uploading"
	AttachmentReady     AttachmentState = "ready"
	AttachmentFailed    AttachmentState = "failed"
)

// Topic is the notification prefix for draft changes.
const Topic = "composer"

func DraftTopic(conversationID string) string { return Topic + ":" + conversationID }

type DraftAttachment struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ContentType string          `json:"content_type"`
	Size        int64           `json:"size"`
	State       AttachmentState `json:"state"`
	Progress    int             `json:"progress"`
	Error       string          `json:"error,omitempty"`
	// Uploaded is set once State is ready.
	Uploaded message.Attachment `json:"uploaded"`
}

// Draft is a snapshot of one conversation's composer.
type Draft struct {
	ConversationID string            `json:"conversation_id"`
	Content        string            `json:"content"`
	Attachments    []DraftAttachment `json:"attachments"`
	ReplyTo        string            `json:"reply_to,omitempty"`
	IsTyping       bool              `json:"is_typing"`
}

// Uploading reports whether any attachment is queued or in flight.
func (d Draft) Uploading() bool {
	for _, a := range d.Attachments {
		if a.State == AttachmentQueued || a.State == AttachmentUploading {
			return true
		}
	}
	return false
}

// Ready returns the uploaded attachments in draft order.
func (d Draft) Ready() []message.Attachment {
	var out []message.Attachment
	for _, a := range d.Attachments {
		if a.State == AttachmentReady {
			out = append(out, a.Uploaded)
		}
	}
	return out
}

type draftAttachment struct {
	DraftAttachment
	file   storage.File
	gen    uint64
	cancel func()
}

type draft struct {
	content     string
	replyTo     string
	typing      bool
	typingGen   uint64
	timer       *time.Timer
	attachments []*draftAttachment
	// submitting is set while Send waits on the Sender.
	submitting bool
}

func (d *draft) empty() bool {
	return d.content == "" && d.replyTo == "" && !d.typing && !d.submitting && len(d.attachments) == 0
}

func (d *draft) find(id string) (int, *draftAttachment) {
	for i, a := range d.attachments {
		if a.ID == id {
			return i, a
		}
	}
	return -1, nil
}

func (d *draft) snapshot(conversationID string) Draft {
	out := Draft{
		ConversationID: conversationID,
		Content:        d.content,
		ReplyTo:        d.replyTo,
		IsTyping:       d.typing,
		Attachments:    make([]DraftAttachment, 0, len(d.attachments)),
	}
	for _, a := range d.attachments {
		out.Attachments = append(out.Attachments, a.DraftAttachment)
	}
	return out
}
