package errors

import (
	"errors"
	"net/http"
)

// Виды ошибок. Любая ошибка сервиса сводится к одному из них через errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrStorageFailure   = errors.New("storage failure")
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
)

var (
	ErrWorkspaceNotFound = New(ErrNotFound, "Workspace not found")
	ErrMessageNotFound   = New(ErrNotFound, "Message not found")

	ErrNotMessageAuthor    = New(ErrPermissionDenied, "You do not have permission to delete this message")
	ErrDeleteWindowExpired = New(ErrPermissionDenied, "You can only delete messages within 5 minutes of sending")
	ErrNotWorkspaceOwner   = New(ErrPermissionDenied, "Only workspace owner can delete all messages")

	ErrEmptyMessage   = New(ErrBadRequest, "Message cannot be empty")
	ErrMessageTooLong = New(ErrBadRequest, "Message is too long")

	ErrMalformedEvent  = New(ErrBadRequest, "Malformed event")
	ErrUnknownEvent    = New(ErrBadRequest, "Unknown event")
	ErrInvalidIdentity = New(ErrBadRequest, "userId is required")
)

const internalMessage = "Internal server error"

// Error несет короткое сообщение для клиента; Cause в ответ никогда не попадает.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Storage оборачивает ошибку хранилища
func Storage(message string, cause error) *Error {
	return &Error{Kind: ErrStorageFailure, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// ClientMessage возвращает безопасный текст для клиента
func ClientMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return internalMessage
}

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
