package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/middleware"
	"support-chat-backend/internal/dto"
	internaljwt "support-chat-backend/internal/jwt"
	"support-chat-backend/internal/model"
	"support-chat-backend/internal/queue"
	authsvc "support-chat-backend/internal/service/auth"
	handoffservice "support-chat-backend/internal/service/handoff"
)

type memoryChatRepository struct {
	mu        sync.Mutex
	sessions  map[string]model.ChatSessionItem
	messages  map[string][]model.MessageItem
	operators map[string]model.OperatorItem
}

func newMemoryChatRepository() *memoryChatRepository {
	return &memoryChatRepository{
		sessions:  make(map[string]model.ChatSessionItem),
		messages:  make(map[string][]model.MessageItem),
		operators: make(map[string]model.OperatorItem),
	}
}

func (m *memoryChatRepository) CreateSession(ctx context.Context, session model.ChatSessionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.SessionID]; ok {
		return handoffservice.ErrConflict
	}
	m.sessions[session.SessionID] = session
	return nil
}

func (m *memoryChatRepository) GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ChatSessionItem{}, handoffservice.ErrNotFound
	}
	return session, nil
}

func (m *memoryChatRepository) ListSessions(ctx context.Context) ([]model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.ChatSessionItem, 0, len(m.sessions))
	for _, session := range m.sessions {
		items = append(items, session)
	}
	return items, nil
}

func (m *memoryChatRepository) MarkWaitingOperator(ctx context.Context, sessionID, now string) (model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ChatSessionItem{}, handoffservice.ErrNotFound
	}
	if session.Status != model.SessionStatusActive {
		return model.ChatSessionItem{}, handoffservice.ErrConflict
	}
	session.Status = model.SessionStatusWaitingOperator
	session.Version++
	session.LastActivity = now
	m.sessions[sessionID] = session
	return session, nil
}

func (m *memoryChatRepository) TakeSession(ctx context.Context, sessionID, operatorID, now string) (model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ChatSessionItem{}, handoffservice.ErrNotFound
	}
	if session.Status != model.SessionStatusActive && session.Status != model.SessionStatusWaitingOperator {
		return model.ChatSessionItem{}, handoffservice.ErrConflict
	}
	session.Status = model.SessionStatusWithOperator
	session.HandlerType = model.HandlerTypeOperator
	session.HandlerOperatorID = operatorID
	session.Version++
	session.LastActivity = now
	m.sessions[sessionID] = session
	return session, nil
}

func (m *memoryChatRepository) ReleaseSession(ctx context.Context, sessionID, operatorID, now string) (model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ChatSessionItem{}, handoffservice.ErrNotFound
	}
	if session.Status != model.SessionStatusWithOperator || session.HandlerOperatorID != operatorID {
		return model.ChatSessionItem{}, handoffservice.ErrConflict
	}
	session.Status = model.SessionStatusActive
	session.HandlerType = model.HandlerTypeAI
	session.HandlerOperatorID = ""
	session.Version++
	session.LastActivity = now
	m.sessions[sessionID] = session
	return session, nil
}

func (m *memoryChatRepository) CloseSession(ctx context.Context, sessionID, now string) (model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ChatSessionItem{}, handoffservice.ErrNotFound
	}
	if session.Status == model.SessionStatusClosed {
		return model.ChatSessionItem{}, handoffservice.ErrConflict
	}
	session.Status = model.SessionStatusClosed
	session.HandlerType = model.HandlerTypeAI
	session.HandlerOperatorID = ""
	session.Version++
	session.LastActivity = now
	session.ClosedAt = now
	m.sessions[sessionID] = session
	return session, nil
}

func (m *memoryChatRepository) CreateMessage(ctx context.Context, message model.MessageItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[message.SessionID] = append(m.messages[message.SessionID], message)
	return nil
}

func (m *memoryChatRepository) ListMessages(ctx context.Context, sessionID string) ([]model.MessageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]model.MessageItem, len(m.messages[sessionID]))
	copy(items, m.messages[sessionID])
	sort.Slice(items, func(i, j int) bool {
		return items[i].SK < items[j].SK
	})
	return items, nil
}

func (m *memoryChatRepository) RecordMessageActivity(ctx context.Context, sessionID string, author model.MessageAuthor, operatorID string, now string) (model.ChatSessionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return model.ChatSessionItem{}, handoffservice.ErrNotFound
	}
	switch author {
	case model.MessageAuthorUser:
		if session.Status == model.SessionStatusClosed {
			return model.ChatSessionItem{}, handoffservice.ErrConflict
		}
		session.UserMessages++
	case model.MessageAuthorAI:
		if session.Status == model.SessionStatusClosed || session.HandlerType != model.HandlerTypeAI {
			return model.ChatSessionItem{}, handoffservice.ErrConflict
		}
		session.AIMessages++
	case model.MessageAuthorOperator:
		if session.Status != model.SessionStatusWithOperator || session.HandlerOperatorID != operatorID {
			return model.ChatSessionItem{}, handoffservice.ErrConflict
		}
		session.OperatorMessages++
	}
	session.Version++
	session.LastActivity = now
	m.sessions[sessionID] = session
	return session, nil
}

func (m *memoryChatRepository) GetOperator(ctx context.Context, operatorID string) (model.OperatorItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	operator, ok := m.operators[operatorID]
	if !ok {
		return model.OperatorItem{}, handoffservice.ErrNotFound
	}
	return operator, nil
}

type memoryOperatorRepository struct {
	mu        sync.Mutex
	operators map[string]model.OperatorItem
}

func newMemoryOperatorRepository() *memoryOperatorRepository {
	return &memoryOperatorRepository{operators: make(map[string]model.OperatorItem)}
}

func (m *memoryOperatorRepository) CreateOperator(ctx context.Context, operator model.OperatorItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.operators[operator.OperatorID]; ok {
		return authsvc.ErrExists
	}
	m.operators[operator.OperatorID] = operator
	return nil
}

func (m *memoryOperatorRepository) GetOperator(ctx context.Context, operatorID string) (model.OperatorItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	operator, ok := m.operators[operatorID]
	if !ok {
		return model.OperatorItem{}, authsvc.ErrNotFound
	}
	return operator, nil
}

func (m *memoryOperatorRepository) FindOperatorByEmail(ctx context.Context, email string) (model.OperatorItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, operator := range m.operators {
		if operator.Email == email {
			return operator, nil
		}
	}
	return model.OperatorItem{}, authsvc.ErrNotFound
}

func setupChatTestHandler(t *testing.T) (http.Handler, *handoffservice.Service, *memoryChatRepository) {
	t.Helper()

	repo := newMemoryChatRepository()
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	svc := handoffservice.NewWithRepository(repo, nil, func() time.Time { return now })
	authService := authsvc.NewWithRepository(newMemoryOperatorRepository(), func() time.Time { return now })

	originalSecret := internaljwt.RoleSecrets[internaljwt.RoleAdmin]
	internaljwt.RoleSecrets[internaljwt.RoleAdmin] = "jwt-test-secret"
	t.Cleanup(func() {
		internaljwt.RoleSecrets[internaljwt.RoleAdmin] = originalSecret
	})

	t.Setenv("SERVICE_API_KEY", "internal-test-key")

	queueManager := queue.NewRequestQueueManager(10, 1)
	server := api.NewAPIServer(":0", queueManager, nil, nil)

	chatEndpoints := NewChatEndpoints(svc, authService, nil, ChatPaths{
		SessionPrefix:         "/api/admin/v1/chat/sessions/",
		PublicSessionPrefix:   "/api/public/v1/chat/sessions/",
		InternalSessionPrefix: "/api/internal/v1/chat/sessions/",
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/v1/chat/sessions", server.MakeHTTPHandleFunc(chatEndpoints.Sessions, middleware.ValidateAdminJWT))
	mux.HandleFunc("/api/admin/v1/chat/sessions/", server.MakeHTTPHandleFunc(chatEndpoints.SessionMessages, middleware.ValidateAdminJWT))
	mux.HandleFunc("/api/admin/v1/chat/take", server.MakeHTTPHandleFunc(chatEndpoints.Take, middleware.ValidateAdminJWT))
	mux.HandleFunc("/api/admin/v1/chat/release", server.MakeHTTPHandleFunc(chatEndpoints.Release, middleware.ValidateAdminJWT))
	mux.HandleFunc("/api/admin/v1/chat/close", server.MakeHTTPHandleFunc(chatEndpoints.Close, middleware.ValidateAdminJWT))
	mux.HandleFunc("/api/admin/v1/chat/send", server.MakeHTTPHandleFunc(chatEndpoints.Send, middleware.ValidateAdminJWT))
	mux.HandleFunc("/api/admin/v1/chat/stats", server.MakeHTTPHandleFunc(chatEndpoints.Stats, middleware.ValidateAdminJWT))
	mux.HandleFunc("/api/public/v1/chat/sessions", server.MakeHTTPHandleFunc(chatEndpoints.PublicSessions))
	mux.HandleFunc("/api/public/v1/chat/sessions/", server.MakeHTTPHandleFunc(chatEndpoints.PublicSessionMessages))
	mux.HandleFunc("/api/internal/v1/chat/sessions/", server.MakeHTTPHandleFunc(chatEndpoints.AIMessages, middleware.ValidateServiceKey()))

	t.Cleanup(queueManager.Shutdown)

	return mux, svc, repo
}

func adminToken(t *testing.T, operatorID string) string {
	t.Helper()
	token, err := internaljwt.CreateToken(internaljwt.Operator{
		Id:       operatorID,
		Email:    operatorID + "@example.com",
		Username: operatorID,
	}, internaljwt.RoleAdmin, time.Now().Add(time.Hour).Unix())
	if err != nil {
		t.Fatalf("CreateToken error: %v", err)
	}
	return token
}

func addChatOperator(repo *memoryChatRepository, operatorID string) {
	repo.operators[operatorID] = model.OperatorItem{
		OperatorID: operatorID,
		Username:   operatorID,
		Email:      operatorID + "@example.com",
	}
}

func createTestSession(t *testing.T, svc *handoffservice.Service) model.ChatSessionItem {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), "user-1", "Alice")
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	return session
}

func postJSON(t *testing.T, handler http.Handler, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestTakeEndpoint(t *testing.T) {
	handler, svc, repo := setupChatTestHandler(t)
	addChatOperator(repo, "op-1")
	session := createTestSession(t, svc)

	rec := postJSON(t, handler, "/api/admin/v1/chat/take", adminToken(t, "op-1"), dto.TakeChatRequest{SessionID: session.SessionID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(model.SessionStatusWithOperator) {
		t.Fatalf("unexpected status %s", resp.Status)
	}
	if resp.Handler.Type != string(model.HandlerTypeOperator) || resp.Handler.OperatorID != "op-1" {
		t.Fatalf("unexpected handler %+v", resp.Handler)
	}
	if resp.Version != session.Version+1 {
		t.Fatalf("expected version %d, got %d", session.Version+1, resp.Version)
	}
}

func TestTakeEndpointRequiresToken(t *testing.T) {
	handler, svc, repo := setupChatTestHandler(t)
	addChatOperator(repo, "op-1")
	session := createTestSession(t, svc)

	rec := postJSON(t, handler, "/api/admin/v1/chat/take", "", dto.TakeChatRequest{SessionID: session.SessionID})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestTakeConflictCarriesSnapshot(t *testing.T) {
	handler, svc, repo := setupChatTestHandler(t)
	addChatOperator(repo, "op-1")
	addChatOperator(repo, "op-2")
	session := createTestSession(t, svc)

	if rec := postJSON(t, handler, "/api/admin/v1/chat/take", adminToken(t, "op-1"), dto.TakeChatRequest{SessionID: session.SessionID}); rec.Code != http.StatusOK {
		t.Fatalf("first take: expected status 200, got %d", rec.Code)
	}

	rec := postJSON(t, handler, "/api/admin/v1/chat/take", adminToken(t, "op-2"), dto.TakeChatRequest{SessionID: session.SessionID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp api.ApiError
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != string(handoffservice.ErrorCodeAlreadyHandled) {
		t.Fatalf("expected already_handled, got %s", resp.Code)
	}
	if resp.Session == nil || resp.Session.Handler.OperatorID != "op-1" {
		t.Fatalf("expected snapshot naming the holder, got %+v", resp.Session)
	}
}

func TestReleaseEndpointNotOwner(t *testing.T) {
	handler, svc, repo := setupChatTestHandler(t)
	addChatOperator(repo, "op-1")
	addChatOperator(repo, "op-2")
	session := createTestSession(t, svc)

	if _, err := svc.Take(context.Background(), session.SessionID, "op-1"); err != nil {
		t.Fatalf("Take error: %v", err)
	}

	rec := postJSON(t, handler, "/api/admin/v1/chat/release", adminToken(t, "op-2"), dto.ReleaseChatRequest{SessionID: session.SessionID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp api.ApiError
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != string(handoffservice.ErrorCodeNotOwner) {
		t.Fatalf("expected not_owner, got %s", resp.Code)
	}
}

func TestSendEndpointNotHandler(t *testing.T) {
	handler, svc, repo := setupChatTestHandler(t)
	addChatOperator(repo, "op-1")
	addChatOperator(repo, "op-2")
	session := createTestSession(t, svc)

	if _, err := svc.Take(context.Background(), session.SessionID, "op-1"); err != nil {
		t.Fatalf("Take error: %v", err)
	}

	rec := postJSON(t, handler, "/api/admin/v1/chat/send", adminToken(t, "op-2"), dto.SendMessageRequest{
		SessionID: session.SessionID,
		Message:   "hello",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp api.ApiError
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Code != string(handoffservice.ErrorCodeNotAuthorizedHandler) {
		t.Fatalf("expected not_authorized_handler, got %s", resp.Code)
	}
}

func TestSendEndpoint(t *testing.T) {
	handler, svc, repo := setupChatTestHandler(t)
	addChatOperator(repo, "op-1")
	session := createTestSession(t, svc)

	if _, err := svc.Take(context.Background(), session.SessionID, "op-1"); err != nil {
		t.Fatalf("Take error: %v", err)
	}

	rec := postJSON(t, handler, "/api/admin/v1/chat/send", adminToken(t, "op-1"), dto.SendMessageRequest{
		SessionID: session.SessionID,
		Message:   "how can I help?",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.MessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Author != string(model.MessageAuthorOperator) || resp.Text != "how can I help?" {
		t.Fatalf("unexpected message %+v", resp)
	}
}

func TestListSessionsEndpoint(t *testing.T) {
	handler, svc, _ := setupChatTestHandler(t)
	createTestSession(t, svc)
	createTestSession(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/chat/sessions?limit=1", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "op-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.SessionsListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Sessions) != 1 {
		t.Fatalf("expected total=2 page of 1, got total=%d len=%d", resp.Total, len(resp.Sessions))
	}
}

func TestPublicCreateSessionEndpoint(t *testing.T) {
	handler, _, _ := setupChatTestHandler(t)

	rec := postJSON(t, handler, "/api/public/v1/chat/sessions", "", dto.CreateSessionRequest{
		UserID:   "user-1",
		UserName: "Alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" || resp.Status != string(model.SessionStatusActive) {
		t.Fatalf("unexpected session %+v", resp)
	}
}

func TestRequestOperatorEndpoint(t *testing.T) {
	handler, svc, _ := setupChatTestHandler(t)
	session := createTestSession(t, svc)

	rec := postJSON(t, handler, "/api/public/v1/chat/sessions/"+session.SessionID+"/request-operator", "", struct{}{})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(model.SessionStatusWaitingOperator) {
		t.Fatalf("unexpected status %s", resp.Status)
	}

	// Repeating the request keeps the stored state as-is.
	again := postJSON(t, handler, "/api/public/v1/chat/sessions/"+session.SessionID+"/request-operator", "", struct{}{})
	if again.Code != http.StatusOK {
		t.Fatalf("expected status 200 on repeat, got %d", again.Code)
	}
	var repeat dto.SessionResponse
	if err := json.NewDecoder(again.Body).Decode(&repeat); err != nil {
		t.Fatalf("decode repeat response: %v", err)
	}
	if repeat.Version != resp.Version {
		t.Fatalf("repeat bumped version: %d -> %d", resp.Version, repeat.Version)
	}
}

func TestPublicUserMessageEndpoint(t *testing.T) {
	handler, svc, _ := setupChatTestHandler(t)
	session := createTestSession(t, svc)

	rec := postJSON(t, handler, "/api/public/v1/chat/sessions/"+session.SessionID+"/messages", "", dto.UserMessageRequest{Text: "hi"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.MessageResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Author != string(model.MessageAuthorUser) {
		t.Fatalf("unexpected author %s", resp.Author)
	}
}

func TestAIMessageEndpointRequiresServiceKey(t *testing.T) {
	handler, svc, _ := setupChatTestHandler(t)
	session := createTestSession(t, svc)

	path := "/api/internal/v1/chat/sessions/" + session.SessionID + "/ai-messages"
	payload := dto.AIMessageRequest{Text: "automated reply", ResponseTimeMs: 120}

	rec := postJSON(t, handler, path, "", payload)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without key, got %d", rec.Code)
	}

	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", "internal-test-key")
	keyed := httptest.NewRecorder()
	handler.ServeHTTP(keyed, req)

	if keyed.Code != http.StatusCreated {
		t.Fatalf("expected status 201 with key, got %d: %s", keyed.Code, keyed.Body.String())
	}
}

func TestSessionMessagesEndpoint(t *testing.T) {
	handler, svc, _ := setupChatTestHandler(t)
	session := createTestSession(t, svc)
	for _, text := range []string{"one", "two", "three"} {
		if _, err := svc.AppendUserMessage(context.Background(), session.SessionID, text, nil); err != nil {
			t.Fatalf("AppendUserMessage %q error: %v", text, err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/chat/sessions/"+session.SessionID+"/messages?limit=2", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "op-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.MessagesListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 || len(resp.Messages) != 2 {
		t.Fatalf("expected total=3 page of 2, got total=%d len=%d", resp.Total, len(resp.Messages))
	}
	if resp.Session.SessionID != session.SessionID {
		t.Fatalf("unexpected session %s", resp.Session.SessionID)
	}
}

func TestStatsEndpoint(t *testing.T) {
	handler, svc, repo := setupChatTestHandler(t)
	addChatOperator(repo, "op-1")
	session := createTestSession(t, svc)
	if _, err := svc.Take(context.Background(), session.SessionID, "op-1"); err != nil {
		t.Fatalf("Take error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/chat/stats", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "op-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalSessions != 1 || resp.ByStatus[string(model.SessionStatusWithOperator)] != 1 {
		t.Fatalf("unexpected stats %+v", resp)
	}
}
