package httpdto

import (
	"context"
	"errors"
	"net/http"

	chat_errors "marketplace-chat/pkg/errors"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// NewErrorFromErr renders err with its stable machine code.
func NewErrorFromErr(err error) Response[any] {
	return NewErrorResponse(err.Error(), chat_errors.Code(err))
}

// StatusFor maps the error taxonomy onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, chat_errors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, chat_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat_errors.ErrConflict), errors.Is(err, chat_errors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, chat_errors.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, chat_errors.ErrNetwork), errors.Is(err, chat_errors.ErrTransportDisconnected):
		return http.StatusBadGateway
	case errors.Is(err, chat_errors.ErrCancelled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
