// Package adminclient is the Go client library for the support chat admin
// surface: a REST client, a realtime connection manager, and the view-model
// plumbing that keeps a local session copy consistent with the server.
package adminclient

import "encoding/json"

const (
	StatusActive          = "active"
	StatusWaitingOperator = "waiting_operator"
	StatusWithOperator    = "with_operator"
	StatusClosed          = "closed"

	HandlerAI       = "ai"
	HandlerOperator = "operator"
)

type Handler struct {
	Type       string `json:"type"`
	OperatorID string `json:"operatorId,omitempty"`
}

type ChatSession struct {
	SessionID        string  `json:"sessionId"`
	UserID           string  `json:"userId"`
	UserName         string  `json:"userName,omitempty"`
	Status           string  `json:"status"`
	Handler          Handler `json:"handler"`
	Version          int64   `json:"version"`
	UserMessages     int64   `json:"userMessages"`
	AIMessages       int64   `json:"aiMessages"`
	OperatorMessages int64   `json:"operatorMessages"`
	LastActivity     string  `json:"lastActivity"`
	CreatedAt        string  `json:"createdAt"`
	ClosedAt         string  `json:"closedAt,omitempty"`
}

// HandledBy reports whether the given operator currently owns the session.
// Evaluated against the latest snapshot at the moment of action, never cached.
func (s ChatSession) HandledBy(operatorID string) bool {
	return s.Status == StatusWithOperator &&
		s.Handler.Type == HandlerOperator &&
		s.Handler.OperatorID == operatorID
}

type MessageImage struct {
	OriginalName string `json:"originalName,omitempty"`
	URL          string `json:"url"`
}

type Message struct {
	MessageID      string        `json:"messageId"`
	SessionID      string        `json:"sessionId"`
	Author         string        `json:"author"`
	Text           string        `json:"text"`
	Image          *MessageImage `json:"image,omitempty"`
	AIAnalysis     string        `json:"aiAnalysis,omitempty"`
	ResponseTimeMs int64         `json:"responseTimeMs,omitempty"`
	CreatedAt      string        `json:"createdAt"`
}

type SessionsPage struct {
	Sessions []ChatSession `json:"sessions"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
}

type MessagesPage struct {
	Session  ChatSession `json:"session"`
	Messages []Message   `json:"messages"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	Limit    int         `json:"limit"`
}

type Stats struct {
	TotalSessions  int            `json:"totalSessions"`
	ByStatus       map[string]int `json:"byStatus"`
	TotalMessages  int64          `json:"totalMessages"`
	ConnectedUsers int64          `json:"connectedUsers"`
}

// Frame is the realtime wire envelope, identical in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	EventSessionUpdated    = "session_updated"
	EventNewMessage        = "new_message"
	EventOperatorRequested = "operator_requested"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventAuthError         = "auth_error"
	EventError             = "error"

	commandJoinAdminRoom = "join_admin_room"
	commandJoinChat      = "join_chat"
	commandLeaveChat     = "leave_chat"
)

type SessionEvent struct {
	Session ChatSession `json:"session"`
}

type MessageEvent struct {
	Session ChatSession `json:"session"`
	Message Message     `json:"message"`
}

type PresenceEvent struct {
	UserID string `json:"userId"`
}

type ErrorEvent struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Session *ChatSession `json:"session,omitempty"`
}
