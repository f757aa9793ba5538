package dto

import "support-chat-backend/internal/model"

type HandlerResponse struct {
	Type       string `json:"type"`
	OperatorID string `json:"operatorId,omitempty"`
}

type SessionResponse struct {
	SessionID        string          `json:"sessionId"`
	UserID           string          `json:"userId"`
	UserName         string          `json:"userName,omitempty"`
	Status           string          `json:"status"`
	Handler          HandlerResponse `json:"handler"`
	Version          int64           `json:"version"`
	UserMessages     int64           `json:"userMessages"`
	AIMessages       int64           `json:"aiMessages"`
	OperatorMessages int64           `json:"operatorMessages"`
	LastActivity     string          `json:"lastActivity"`
	CreatedAt        string          `json:"createdAt"`
	ClosedAt         string          `json:"closedAt,omitempty"`
}

type MessageImageResponse struct {
	OriginalName string `json:"originalName,omitempty"`
	URL          string `json:"url"`
}

type MessageResponse struct {
	MessageID      string                `json:"messageId"`
	SessionID      string                `json:"sessionId"`
	Author         string                `json:"author"`
	Text           string                `json:"text"`
	Image          *MessageImageResponse `json:"image,omitempty"`
	AIAnalysis     string                `json:"aiAnalysis,omitempty"`
	ResponseTimeMs int64                 `json:"responseTimeMs,omitempty"`
	CreatedAt      string                `json:"createdAt"`
}

type CreateSessionRequest struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type TakeChatRequest struct {
	SessionID string `json:"sessionId"`
}

type ReleaseChatRequest struct {
	SessionID string `json:"sessionId"`
}

type CloseChatRequest struct {
	SessionID string `json:"sessionId"`
}

type SendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type UserMessageRequest struct {
	Text  string               `json:"text"`
	Image *MessageImageRequest `json:"image,omitempty"`
}

type MessageImageRequest struct {
	OriginalName string `json:"originalName,omitempty"`
	URL          string `json:"url"`
}

type AIMessageRequest struct {
	Text           string `json:"text"`
	AIAnalysis     string `json:"aiAnalysis,omitempty"`
	ResponseTimeMs int64  `json:"responseTimeMs,omitempty"`
}

type SessionsListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type MessagesListResponse struct {
	Session  SessionResponse   `json:"session"`
	Messages []MessageResponse `json:"messages"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type StatsResponse struct {
	TotalSessions  int            `json:"totalSessions"`
	ByStatus       map[string]int `json:"byStatus"`
	TotalMessages  int64          `json:"totalMessages"`
	ConnectedUsers int64          `json:"connectedUsers"`
}

func FromSession(session model.ChatSessionItem) SessionResponse {
	return SessionResponse{
		SessionID: session.SessionID,
		UserID:    session.UserID,
		UserName:  session.UserName,
		Status:    string(session.Status),
		Handler: HandlerResponse{
			Type:       string(session.HandlerType),
			OperatorID: session.HandlerOperatorID,
		},
		Version:          session.Version,
		UserMessages:     session.UserMessages,
		AIMessages:       session.AIMessages,
		OperatorMessages: session.OperatorMessages,
		LastActivity:     session.LastActivity,
		CreatedAt:        session.CreatedAt,
		ClosedAt:         session.ClosedAt,
	}
}

func FromSessions(sessions []model.ChatSessionItem) []SessionResponse {
	resp := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, FromSession(session))
	}
	return resp
}

func FromMessage(message model.MessageItem) MessageResponse {
	resp := MessageResponse{
		MessageID:      message.MessageID,
		SessionID:      message.SessionID,
		Author:         string(message.Author),
		Text:           message.Text,
		AIAnalysis:     message.AIAnalysis,
		ResponseTimeMs: message.ResponseTimeMs,
		CreatedAt:      message.CreatedAt,
	}
	if message.Image != nil {
		resp.Image = &MessageImageResponse{
			OriginalName: message.Image.OriginalName,
			URL:          message.Image.URL,
		}
	}
	return resp
}

func FromMessages(messages []model.MessageItem) []MessageResponse {
	resp := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		resp = append(resp, FromMessage(message))
	}
	return resp
}
