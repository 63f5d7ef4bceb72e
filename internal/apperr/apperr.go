package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure by how the caller should react to it.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindConflict   Kind = "conflict"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindAuth       Kind = "auth"
	KindInternal   Kind = "internal"
)

// Reason codes carried in the "code" field of error responses.
const (
	CodeAlreadyJoined   = "already_joined"
	CodeNotFound        = "not_found"
	CodeInactive        = "inactive"
	CodeNotAParticipant = "not_a_participant"
	CodeAlreadyFriends  = "already_friends"
	CodeAlreadyPending  = "already_pending"
	CodeUserNotFound    = "user_not_found"
	CodeInvalidState    = "invalid_state"
	CodeValidation      = "validation"
	CodeUnauthorized    = "unauthorized"
	CodeTimeout         = "timeout"
	CodeNetwork         = "network"
	CodeReadOnly        = "read_only"
	CodeInternal        = "internal"
)

// Error represents an application error
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind and Code so that a freshly decoded error compares equal
// to the sentinel with the same reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message)
}

var (
	ErrNetwork    = New(KindNetwork, CodeNetwork, "network error")
	ErrTimeout    = New(KindTimeout, CodeTimeout, "operation timed out")
	ErrAuth       = New(KindAuth, CodeUnauthorized, "session expired")
	ErrValidation = New(KindValidation, CodeValidation, "invalid request")
	ErrNotFound   = New(KindNotFound, CodeNotFound, "resource not found")

	ErrAlreadyJoined   = New(KindConflict, CodeAlreadyJoined, "already participating in challenge")
	ErrInactive        = New(KindConflict, CodeInactive, "challenge is not active")
	ErrNotAParticipant = New(KindConflict, CodeNotAParticipant, "not a participant of challenge")
	ErrAlreadyFriends  = New(KindConflict, CodeAlreadyFriends, "already friends")
	ErrAlreadyPending  = New(KindConflict, CodeAlreadyPending, "friend request already pending")
	ErrInvalidState    = New(KindConflict, CodeInvalidState, "relationship is not in the expected state")
	ErrUserNotFound    = New(KindNotFound, CodeUserNotFound, "user not found")
	ErrReadOnly        = New(KindValidation, CodeReadOnly, "store is read-only")
)

// KindOf reports the kind of err. Context errors map to Timeout and unknown
// errors to Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable is true for transient failures the user may simply retry.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		return true
	default:
		return false
	}
}

// FromStatus builds an error from an HTTP response status and reason code.
func FromStatus(status int, code, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}

	var kind Kind
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusNotFound:
		kind = KindNotFound
	case status == http.StatusConflict:
		kind = KindConflict
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	default:
		kind = KindNetwork
	}

	if code == "" {
		code = defaultCode(kind)
	}
	return New(kind, code, message)
}

// HTTPStatus is the inverse of FromStatus, used by the API handlers.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func defaultCode(kind Kind) string {
	switch kind {
	case KindValidation:
		return CodeValidation
	case KindAuth:
		return CodeUnauthorized
	case KindNotFound:
		return CodeNotFound
	case KindConflict:
		return CodeInvalidState
	case KindTimeout:
		return CodeTimeout
	default:
		return CodeNetwork
	}
}
