package message

import "strings"

// MediaKind classifies an attachment.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaFile  MediaKind = "file"
)

// Attachment is a file attached to a message. Progress is meaningful only
// while IsUploading is true; an uploaded attachment is never modified.
type Attachment struct {
	ID          string    `json:"id"`
	Kind        MediaKind `json:"kind"`
	URL         string    `json:"url"`
	Name        string    `json:"name,omitempty"`
	MimeType    string    `json:"mime_type,omitempty"`
	SizeBytes   int64     `json:"size"`
	Progress    int       `json:"progress"`
	IsUploading bool      `json:"is_uploading"`
}

// KindFromMime derives the media kind from a MIME type.
func KindFromMime(mimeType string) MediaKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MediaImage
	case strings.HasPrefix(mimeType, "video/"):
		return MediaVideo
	default:
		return MediaFile
	}
}

// TypeForAttachments picks the message type for an attachment-only message.
func TypeForAttachments(attachments []Attachment) Type {
	if len(attachments) == 0 {
		return TypeText
	}
	kind := attachments[0].Kind
	for _, a := range attachments[1:] {
		if a.Kind != kind {
			return TypeFile
		}
	}
	switch kind {
	case MediaImage:
		return TypeImage
	case MediaVideo:
		return TypeVideo
	default:
		return TypeFile
	}
}
