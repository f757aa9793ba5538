package realtime

import (
	"encoding/json"

	"support-chat-backend/internal/dto"
)

const (
	AdminRoom      = "admin"
	chatRoomPrefix = "chat:"
)

func ChatRoom(sessionID string) string {
	return chatRoomPrefix + sessionID
}

// Event names carried on the wire, both directions.
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

	CommandJoinAdminRoom = "join_admin_room"
	CommandJoinChat      = "join_chat"
	CommandLeaveChat     = "leave_chat"
	CommandTakeChat      = "take_chat"
	CommandReleaseChat   = "release_chat"
	CommandTypingStart   = "typing_start"
	CommandTypingStop    = "typing_stop"
)

// Frame is the envelope for every websocket message and every Redis payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewFrame(event string, data interface{}) (Frame, error) {
	if data == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}

type AuthFrame struct {
	Token    string `json:"token"`
	UserType string `json:"userType"`
}

type SessionEvent struct {
	Session dto.SessionResponse `json:"session"`
}

type MessageEvent struct {
	Session dto.SessionResponse `json:"session"`
	Message dto.MessageResponse `json:"message"`
}

type PresenceEvent struct {
	UserID string `json:"userId"`
}

type TypingEvent struct {
	SessionID string `json:"sessionId"`
	Author    string `json:"author"`
}

type ChatCommand struct {
	SessionID string `json:"sessionId"`
}

type ErrorEvent struct {
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Session *dto.SessionResponse `json:"session,omitempty"`
}
