package adminclient

import "errors"

type ErrorCode string

const (
	CodeValidation           ErrorCode = "validation_error"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeNotFound             ErrorCode = "not_found"
	CodeAlreadyHandled       ErrorCode = "already_handled"
	CodeNotOwner             ErrorCode = "not_owner"
	CodeNotAuthorizedHandler ErrorCode = "not_authorized_handler"
	CodeSessionClosed        ErrorCode = "session_closed"
	CodeInternal             ErrorCode = "internal_error"
)

// ErrTimeout marks a request that expired before the server answered. It is
// transport-level, distinct from a negative business answer like
// AlreadyHandled, so callers can decide whether a retry is safe.
var ErrTimeout = errors.New("adminclient: request timed out")

// ErrNotHandler is returned locally, before any network call, when the
// caller tries to send into a session it does not currently handle.
var ErrNotHandler = errors.New("adminclient: not the current handler of this session")

// ErrClosed is returned by operations on a torn-down ConnectionManager.
var ErrClosed = errors.New("adminclient: connection manager closed")

// APIError is a structured business failure from the server. Conflicts carry
// the canonical session so the caller can re-render from authoritative state
// instead of guessing.
type APIError struct {
	StatusCode int
	Code       ErrorCode
	Message    string
	Session    *ChatSession
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// IsConflict reports whether err is a lost race or ownership violation that
// should be surfaced with canonical state rather than retried.
func IsConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case CodeAlreadyHandled, CodeNotOwner, CodeSessionClosed, CodeNotAuthorizedHandler:
		return true
	}
	return false
}
