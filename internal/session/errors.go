package session

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	ErrUnauthenticated ErrorType = iota
	ErrInvalidArgument
	ErrNotFound
	ErrStorage
	ErrMedia
	ErrInternal
)

// SessionError carries a typed failure out of a session operation. Local
// store mutations cannot fail; only gateway-facing operations return these.
type SessionError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *SessionError {
	return &SessionError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *SessionError {
	return &SessionError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *SessionError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

func (e *SessionError) WithContext(key string, value any) *SessionError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrUnauthenticated:
		return "Unauthenticated"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrNotFound:
		return "NotFound"
	case ErrStorage:
		return "Storage"
	case ErrMedia:
		return "Media"
	case ErrInternal:
		return "Internal"
	default:
		return "Internal"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *SessionError {
	return NewErrorWithCause(errorType, message, err)
}
