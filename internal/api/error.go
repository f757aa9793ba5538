package api

import "support-chat-backend/internal/dto"

type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Session    *dto.SessionResponse
	ErrorLog   error
}

func (e *HTTPError) Error() string {
	return e.Message
}

// ApiError is the error body every endpoint returns. Code and Session are
// present on handoff conflicts so callers can reconcile to the canonical
// state without an extra fetch.
type ApiError struct {
	Error   string               `json:"message"`
	Code    string               `json:"code,omitempty"`
	Session *dto.SessionResponse `json:"session,omitempty"`
}
