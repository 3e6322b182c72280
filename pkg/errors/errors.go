package chat_errors

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy shared by the stores, services and transport.
var (
	// ErrNetwork is transient and retryable.
	ErrNetwork = errors.New("network error")
	// ErrValidation is never retried and never reaches the network.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a stale mutation; callers resolve it by refetching.
	ErrConflict = errors.New("conflict")
	// ErrTransportDisconnected means the intent was queued and deferred.
	ErrTransportDisconnected = errors.New("transport disconnected")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrQueueFull         = errors.New("queue full")
	ErrCancelled         = errors.New("operation cancelled")
)

// Validation failures surfaced directly to the user.
var (
	ErrEmptyMessage       = fmt.Errorf("%w: message has no content and no attachments", ErrValidation)
	ErrAttachmentTooLarge = fmt.Errorf("%w: attachment too large", ErrValidation)
	ErrUploadsPending     = fmt.Errorf("%w: attachments still uploading", ErrValidation)
	ErrInvalidInput       = fmt.Errorf("%w: invalid input", ErrValidation)
)

// Network wraps err as a retryable network error.
func Network(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNetwork) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// IsRetryable reports whether an automatic retry may be attempted.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) || errors.Is(err, ErrCancelled) {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}

// Code returns the stable machine code used in API responses.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrTransportDisconnected):
		return "TRANSPORT_DISCONNECTED"
	case errors.Is(err, ErrQueueFull):
		return "QUEUE_FULL"
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return "NETWORK_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
