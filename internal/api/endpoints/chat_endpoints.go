package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"support-chat-backend/internal/dto"
	"support-chat-backend/internal/model"
	"support-chat-backend/internal/realtime"
	authsvc "support-chat-backend/internal/service/auth"
	handoffservice "support-chat-backend/internal/service/handoff"
)

type ChatEndpoints interface {
	Sessions(http.ResponseWriter, *http.Request) error
	SessionMessages(http.ResponseWriter, *http.Request) error
	Take(http.ResponseWriter, *http.Request) error
	Release(http.ResponseWriter, *http.Request) error
	Close(http.ResponseWriter, *http.Request) error
	Send(http.ResponseWriter, *http.Request) error
	Stats(http.ResponseWriter, *http.Request) error
	PublicSessions(http.ResponseWriter, *http.Request) error
	PublicSessionMessages(http.ResponseWriter, *http.Request) error
	AIMessages(http.ResponseWriter, *http.Request) error
	Websocket(http.ResponseWriter, *http.Request) error
}

type ChatPaths struct {
	SessionPrefix         string
	PublicSessionPrefix   string
	InternalSessionPrefix string
}

type chatEndpoints struct {
	service     *handoffservice.Service
	authService *authsvc.Service
	gateway     *realtime.Gateway
	paths       ChatPaths
}

func NewChatEndpoints(service *handoffservice.Service, authService *authsvc.Service, gateway *realtime.Gateway, paths ChatPaths) ChatEndpoints {
	return &chatEndpoints{
		service:     service,
		authService: authService,
		gateway:     gateway,
		paths:       paths,
	}
}

func (h *chatEndpoints) Sessions(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListSessions,
	})
}

func (h *chatEndpoints) SessionMessages(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListMessages,
	})
}

func (h *chatEndpoints) Take(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleTake,
	})
}

func (h *chatEndpoints) Release(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleRelease,
	})
}

func (h *chatEndpoints) Close(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleClose,
	})
}

func (h *chatEndpoints) Send(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleSend,
	})
}

func (h *chatEndpoints) Stats(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleStats,
	})
}

func (h *chatEndpoints) PublicSessions(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleCreateSession,
	})
}

func (h *chatEndpoints) PublicSessionMessages(w http.ResponseWriter, r *http.Request) error {
	trimmed := strings.TrimRight(r.URL.Path, "/")
	if strings.HasSuffix(trimmed, "/request-operator") {
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleRequestOperator,
		})
	}

	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleListPublicMessages,
		http.MethodPost: h.handlePostUserMessage,
	})
}

func (h *chatEndpoints) AIMessages(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handlePostAIMessage,
	})
}

func (h *chatEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	h.gateway.HandleSocket(w, r)
	return nil
}

func (h *chatEndpoints) handleListSessions(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	result, err := h.service.ListSessions(r.Context(), handoffservice.ListSessionsParams{
		Page:   page,
		Limit:  limit,
		Search: query.Get("search"),
		Status: model.SessionStatus(query.Get("status")),
	})
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.SessionsListResponse{
		Sessions: dto.FromSessions(result.Sessions),
		Total:    result.Total,
		Page:     result.Page,
		Limit:    result.Limit,
	})
}

func (h *chatEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request) error {
	sessionID, err := h.sessionIDFromPath(r.URL.Path, h.paths.SessionPrefix, "/messages")
	if err != nil {
		return err
	}
	return h.writeMessagesPage(w, r, sessionID)
}

func (h *chatEndpoints) handleListPublicMessages(w http.ResponseWriter, r *http.Request) error {
	sessionID, err := h.sessionIDFromPath(r.URL.Path, h.paths.PublicSessionPrefix, "/messages")
	if err != nil {
		return err
	}
	return h.writeMessagesPage(w, r, sessionID)
}

func (h *chatEndpoints) writeMessagesPage(w http.ResponseWriter, r *http.Request, sessionID string) error {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	result, err := h.service.ListMessages(r.Context(), sessionID, page, limit)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.MessagesListResponse{
		Session:  dto.FromSession(result.Session),
		Messages: dto.FromMessages(result.Messages),
		Total:    result.Total,
		Page:     result.Page,
		Limit:    result.Limit,
	})
}

func (h *chatEndpoints) handleTake(w http.ResponseWriter, r *http.Request) error {
	identity, err := h.operatorIdentity(r)
	if err != nil {
		return err
	}

	var req dto.TakeChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return invalidPayload("decode take request", err)
	}

	session, err := h.service.Take(r.Context(), req.SessionID, identity.OperatorID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.FromSession(session))
}

func (h *chatEndpoints) handleRelease(w http.ResponseWriter, r *http.Request) error {
	identity, err := h.operatorIdentity(r)
	if err != nil {
		return err
	}

	var req dto.ReleaseChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return invalidPayload("decode release request", err)
	}

	session, err := h.service.Release(r.Context(), req.SessionID, identity.OperatorID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.FromSession(session))
}

func (h *chatEndpoints) handleClose(w http.ResponseWriter, r *http.Request) error {
	if _, err := h.operatorIdentity(r); err != nil {
		return err
	}

	var req dto.CloseChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return invalidPayload("decode close request", err)
	}

	session, err := h.service.Close(r.Context(), req.SessionID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.FromSession(session))
}

func (h *chatEndpoints) handleSend(w http.ResponseWriter, r *http.Request) error {
	identity, err := h.operatorIdentity(r)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return invalidPayload("decode send request", err)
	}

	result, err := h.service.SendOperatorMessage(r.Context(), handoffservice.Identity{
		OperatorID: identity.OperatorID,
		Email:      identity.Email,
		Username:   identity.Username,
	}, req.SessionID, req.Message)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusCreated, dto.FromMessage(result.Message))
}

func (h *chatEndpoints) handleStats(w http.ResponseWriter, r *http.Request) error {
	result, err := h.service.Stats(r.Context())
	if err != nil {
		return h.serviceError(err)
	}

	byStatus := make(map[string]int, len(result.ByStatus))
	for status, count := range result.ByStatus {
		byStatus[string(status)] = count
	}

	return WriteJSON(w, http.StatusOK, dto.StatsResponse{
		TotalSessions:  result.TotalSessions,
		ByStatus:       byStatus,
		TotalMessages:  result.TotalMessages,
		ConnectedUsers: result.ConnectedUsers,
	})
}

func (h *chatEndpoints) handleCreateSession(w http.ResponseWriter, r *http.Request) error {
	var req dto.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return invalidPayload("decode create session request", err)
	}

	session, err := h.service.CreateSession(r.Context(), req.UserID, req.UserName)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusCreated, dto.FromSession(session))
}

func (h *chatEndpoints) handlePostUserMessage(w http.ResponseWriter, r *http.Request) error {
	sessionID, err := h.sessionIDFromPath(r.URL.Path, h.paths.PublicSessionPrefix, "/messages")
	if err != nil {
		return err
	}

	var req dto.UserMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return invalidPayload("decode user message request", err)
	}

	var image *model.MessageImage
	if req.Image != nil {
		image = &model.MessageImage{
			OriginalName: req.Image.OriginalName,
			URL:          req.Image.URL,
		}
	}

	result, err := h.service.AppendUserMessage(r.Context(), sessionID, req.Text, image)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusCreated, dto.FromMessage(result.Message))
}

func (h *chatEndpoints) handleRequestOperator(w http.ResponseWriter, r *http.Request) error {
	sessionID, err := h.sessionIDFromPath(r.URL.Path, h.paths.PublicSessionPrefix, "/request-operator")
	if err != nil {
		return err
	}

	session, err := h.service.RequestOperator(r.Context(), sessionID)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.FromSession(session))
}

func (h *chatEndpoints) handlePostAIMessage(w http.ResponseWriter, r *http.Request) error {
	sessionID, err := h.sessionIDFromPath(r.URL.Path, h.paths.InternalSessionPrefix, "/ai-messages")
	if err != nil {
		return err
	}

	var req dto.AIMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return invalidPayload("decode ai message request", err)
	}

	result, err := h.service.AppendAIMessage(r.Context(), sessionID, req.Text, req.AIAnalysis, req.ResponseTimeMs)
	if err != nil {
		return h.serviceError(err)
	}

	return WriteJSON(w, http.StatusCreated, dto.FromMessage(result.Message))
}

func (h *chatEndpoints) operatorIdentity(r *http.Request) (authsvc.Identity, error) {
	identity, err := h.authService.IdentityFromAuthorizationHeader(r.Header.Get("Authorization"))
	if err != nil {
		return authsvc.Identity{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("operator identity: %w", err),
		}
	}
	return identity, nil
}

func (h *chatEndpoints) sessionIDFromPath(urlPath, prefix, suffix string) (string, error) {
	if prefix == "" || !strings.HasPrefix(urlPath, prefix) {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Session not found",
			ErrorLog:   fmt.Errorf("unexpected path %s", urlPath),
		}
	}

	rest := strings.TrimPrefix(urlPath, prefix)
	rest = strings.TrimRight(rest, "/")
	sessionID := strings.TrimSuffix(rest, suffix)
	sessionID = strings.Trim(sessionID, "/")

	if sessionID == "" || strings.Contains(sessionID, "/") {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Session not found",
			ErrorLog:   fmt.Errorf("session id missing in path %s", urlPath),
		}
	}

	return sessionID, nil
}

func invalidPayload(context string, err error) error {
	return &HTTPError{
		StatusCode: http.StatusBadRequest,
		Message:    "Invalid request payload",
		ErrorLog:   fmt.Errorf("%s: %w", context, err),
	}
}

// serviceError translates handoff service errors into HTTP responses. The
// conflict family keeps its code and canonical session in the body so the
// admin client can reconcile its local copy immediately.
func (h *chatEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*handoffservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("handoff service: %w", err),
		}
	}

	var errorLog error
	if svcErr.Err != nil {
		errorLog = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		errorLog = svcErr
	}

	var session *dto.SessionResponse
	if svcErr.Session != nil {
		converted := dto.FromSession(*svcErr.Session)
		session = &converted
	}

	switch svcErr.Code {
	case handoffservice.ErrorCodeValidation:
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    svcErr.Message,
			Code:       string(svcErr.Code),
			ErrorLog:   errorLog,
		}
	case handoffservice.ErrorCodeUnauthorized:
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    svcErr.Message,
			Code:       string(svcErr.Code),
			ErrorLog:   errorLog,
		}
	case handoffservice.ErrorCodeNotFound:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    svcErr.Message,
			Code:       string(svcErr.Code),
			ErrorLog:   errorLog,
		}
	case handoffservice.ErrorCodeAlreadyHandled, handoffservice.ErrorCodeNotOwner, handoffservice.ErrorCodeSessionClosed:
		return &HTTPError{
			StatusCode: http.StatusConflict,
			Message:    svcErr.Message,
			Code:       string(svcErr.Code),
			Session:    session,
			ErrorLog:   errorLog,
		}
	case handoffservice.ErrorCodeNotAuthorizedHandler:
		return &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    svcErr.Message,
			Code:       string(svcErr.Code),
			Session:    session,
			ErrorLog:   errorLog,
		}
	default:
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   errorLog,
		}
	}
}
