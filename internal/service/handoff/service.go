package handoff

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"support-chat-backend/internal/database"
	"support-chat-backend/internal/model"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation           ErrorCode = "validation_error"
	ErrorCodeUnauthorized         ErrorCode = "unauthorized"
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeAlreadyHandled       ErrorCode = "already_handled"
	ErrorCodeNotOwner             ErrorCode = "not_owner"
	ErrorCodeNotAuthorizedHandler ErrorCode = "not_authorized_handler"
	ErrorCodeSessionClosed        ErrorCode = "session_closed"
	ErrorCodeInternal             ErrorCode = "internal_error"
)

// Error carries the canonical session snapshot on conflict results so the
// caller can reconcile instead of guessing what the session looks like now.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
	Session *model.ChatSessionItem
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func newConflictError(code ErrorCode, message string, session model.ChatSessionItem) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Session: &session,
	}
}

// Identity is the authenticated operator on whose behalf a call is made.
type Identity struct {
	OperatorID string
	Email      string
	Username   string
}

// Publisher receives exactly one call per successful transition or appended
// message. Implementations must not block or return errors into the
// transition path; a lost event is cheap, a stalled transition is not.
type Publisher interface {
	SessionUpdated(session model.ChatSessionItem)
	NewMessage(session model.ChatSessionItem, message model.MessageItem)
	OperatorRequested(session model.ChatSessionItem)
}

type noopPublisher struct{}

func (noopPublisher) SessionUpdated(model.ChatSessionItem)                  {}
func (noopPublisher) NewMessage(model.ChatSessionItem, model.MessageItem)   {}
func (noopPublisher) OperatorRequested(model.ChatSessionItem)               {}

// ConnectedCounter reports how many end users currently hold a live realtime
// connection. Wired from the realtime presence set; nil means zero.
type ConnectedCounter func(ctx context.Context) (int64, error)

type MessageResult struct {
	Session model.ChatSessionItem
	Message model.MessageItem
}

type ListSessionsParams struct {
	Page   int
	Limit  int
	Search string
	Status model.SessionStatus
}

type ListSessionsResult struct {
	Sessions []model.ChatSessionItem
	Total    int
	Page     int
	Limit    int
}

type ListMessagesResult struct {
	Session  model.ChatSessionItem
	Messages []model.MessageItem
	Total    int
	Page     int
	Limit    int
}

type StatsResult struct {
	TotalSessions  int
	ByStatus       map[model.SessionStatus]int
	TotalMessages  int64
	ConnectedUsers int64
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type Service struct {
	repo      Repository
	publisher Publisher
	connected ConnectedCounter
	now       func() time.Time
}

func New(db *database.Database, publisher Publisher) *Service {
	return NewWithRepository(NewDynamoRepository(db), publisher, nil)
}

func NewWithRepository(repo Repository, publisher Publisher, now func() time.Time) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		now:       now,
	}
}

// SetConnectedCounter wires the realtime presence source used by Stats.
func (s *Service) SetConnectedCounter(counter ConnectedCounter) {
	s.connected = counter
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// CreateSession opens a new AI-handled session for a user. Invoked by the
// user-side collaborator when a support conversation starts.
func (s *Service) CreateSession(ctx context.Context, userID, userName string) (model.ChatSessionItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.ChatSessionItem{}, newError(ErrorCodeValidation, "userId is required", nil)
	}

	now := s.timestamp()
	session := model.ChatSessionItem{
		SessionID:    uuid.NewString(),
		UserID:       userID,
		UserName:     strings.TrimSpace(userName),
		Status:       model.SessionStatusActive,
		HandlerType:  model.HandlerTypeAI,
		Version:      1,
		LastActivity: now,
		CreatedAt:    now,
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to create session", err)
	}

	s.publisher.SessionUpdated(session)
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return model.ChatSessionItem{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to fetch session", err)
	}
	return session, nil
}

// RequestOperator queues a session for a human operator. Calling it on a
// session that is already waiting is a no-op: the stored record is untouched,
// no version is consumed and no event is emitted.
func (s *Service) RequestOperator(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return model.ChatSessionItem{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}

	session, err := s.repo.MarkWaitingOperator(ctx, sessionID, s.timestamp())
	if err == nil {
		s.publisher.SessionUpdated(session)
		s.publisher.OperatorRequested(session)
		return session, nil
	}
	if !errors.Is(err, ErrConflict) {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to request operator", err)
	}

	current, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to fetch session", err)
	}

	switch current.Status {
	case model.SessionStatusWaitingOperator:
		return current, nil
	case model.SessionStatusWithOperator:
		return model.ChatSessionItem{}, newConflictError(ErrorCodeAlreadyHandled, "session is already handled by an operator", current)
	default:
		return model.ChatSessionItem{}, newConflictError(ErrorCodeSessionClosed, "session is closed", current)
	}
}

// Take assigns the session to the calling operator. The swap is conditioned
// on the pre-transition status inside the store, so of several concurrent
// callers exactly one wins; every loser gets AlreadyHandled together with
// the canonical state and never overwrites the winner.
func (s *Service) Take(ctx context.Context, sessionID, operatorID string) (model.ChatSessionItem, error) {
	sessionID = strings.TrimSpace(sessionID)
	operatorID = strings.TrimSpace(operatorID)
	if sessionID == "" || operatorID == "" {
		return model.ChatSessionItem{}, newError(ErrorCodeValidation, "sessionId and operatorId are required", nil)
	}

	if _, err := s.repo.GetOperator(ctx, operatorID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeUnauthorized, "operator not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to verify operator", err)
	}

	session, err := s.repo.TakeSession(ctx, sessionID, operatorID, s.timestamp())
	if err == nil {
		s.publisher.SessionUpdated(session)
		return session, nil
	}
	if !errors.Is(err, ErrConflict) {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to take session", err)
	}

	current, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to fetch session", err)
	}

	if current.Status == model.SessionStatusClosed {
		return model.ChatSessionItem{}, newConflictError(ErrorCodeSessionClosed, "session is closed", current)
	}
	return model.ChatSessionItem{}, newConflictError(ErrorCodeAlreadyHandled, "session is already handled by an operator", current)
}

// Release hands the session back to AI. Only the declared owner may do so;
// anyone else gets NotOwner regardless of the session's current state.
func (s *Service) Release(ctx context.Context, sessionID, operatorID string) (model.ChatSessionItem, error) {
	sessionID = strings.TrimSpace(sessionID)
	operatorID = strings.TrimSpace(operatorID)
	if sessionID == "" || operatorID == "" {
		return model.ChatSessionItem{}, newError(ErrorCodeValidation, "sessionId and operatorId are required", nil)
	}

	session, err := s.repo.ReleaseSession(ctx, sessionID, operatorID, s.timestamp())
	if err == nil {
		s.publisher.SessionUpdated(session)
		return session, nil
	}
	if !errors.Is(err, ErrConflict) {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to release session", err)
	}

	current, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to fetch session", err)
	}

	if current.Status == model.SessionStatusClosed {
		return model.ChatSessionItem{}, newConflictError(ErrorCodeSessionClosed, "session is closed", current)
	}
	return model.ChatSessionItem{}, newConflictError(ErrorCodeNotOwner, "session is not owned by this operator", current)
}

// Close archives a session. Terminal: a closed session accepts reads only.
func (s *Service) Close(ctx context.Context, sessionID string) (model.ChatSessionItem, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return model.ChatSessionItem{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}

	session, err := s.repo.CloseSession(ctx, sessionID, s.timestamp())
	if err == nil {
		s.publisher.SessionUpdated(session)
		return session, nil
	}
	if errors.Is(err, ErrConflict) {
		current, getErr := s.repo.GetSession(ctx, sessionID)
		if getErr != nil {
			return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to fetch session", getErr)
		}
		return model.ChatSessionItem{}, newConflictError(ErrorCodeSessionClosed, "session is already closed", current)
	}
	if errors.Is(err, ErrNotFound) {
		return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
	}
	return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to close session", err)
}

// SendOperatorMessage appends an operator message. The handler guard is part
// of the store-side condition, so a message sent into a session that was
// concurrently reclaimed or released fails with NotAuthorizedHandler instead
// of landing under the wrong handler.
func (s *Service) SendOperatorMessage(ctx context.Context, identity Identity, sessionID, text string) (MessageResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	text = strings.TrimSpace(text)
	if identity.OperatorID == "" {
		return MessageResult{}, newError(ErrorCodeUnauthorized, "invalid operator identity", nil)
	}
	if sessionID == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}
	if text == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "message text is required", nil)
	}

	session, err := s.recordActivity(ctx, sessionID, model.MessageAuthorOperator, identity.OperatorID)
	if err != nil {
		return MessageResult{}, err
	}

	message, err := s.storeMessage(ctx, session, model.MessageItem{
		Author: model.MessageAuthorOperator,
		Text:   text,
	})
	if err != nil {
		return MessageResult{}, err
	}

	return MessageResult{Session: session, Message: message}, nil
}

// AppendUserMessage stores an end-user message. Accepted in any non-closed
// state regardless of who handles the session.
func (s *Service) AppendUserMessage(ctx context.Context, sessionID, text string, image *model.MessageImage) (MessageResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	text = strings.TrimSpace(text)
	if sessionID == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}
	if text == "" && image == nil {
		return MessageResult{}, newError(ErrorCodeValidation, "message text or image is required", nil)
	}

	session, err := s.recordActivity(ctx, sessionID, model.MessageAuthorUser, "")
	if err != nil {
		return MessageResult{}, err
	}

	message, err := s.storeMessage(ctx, session, model.MessageItem{
		Author: model.MessageAuthorUser,
		Text:   text,
		Image:  image,
	})
	if err != nil {
		return MessageResult{}, err
	}

	return MessageResult{Session: session, Message: message}, nil
}

// AppendAIMessage stores an AI reply. Guarded on the handler still being AI:
// once an operator owns the session the AI collaborator is locked out.
func (s *Service) AppendAIMessage(ctx context.Context, sessionID, text, aiAnalysis string, responseTimeMs int64) (MessageResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	text = strings.TrimSpace(text)
	if sessionID == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "sessionId is required", nil)
	}
	if text == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "message text is required", nil)
	}

	session, err := s.recordActivity(ctx, sessionID, model.MessageAuthorAI, "")
	if err != nil {
		return MessageResult{}, err
	}

	message, err := s.storeMessage(ctx, session, model.MessageItem{
		Author:         model.MessageAuthorAI,
		Text:           text,
		AIAnalysis:     aiAnalysis,
		ResponseTimeMs: responseTimeMs,
	})
	if err != nil {
		return MessageResult{}, err
	}

	return MessageResult{Session: session, Message: message}, nil
}

func (s *Service) recordActivity(ctx context.Context, sessionID string, author model.MessageAuthor, operatorID string) (model.ChatSessionItem, error) {
	session, err := s.repo.RecordMessageActivity(ctx, sessionID, author, operatorID, s.timestamp())
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrConflict) {
		if errors.Is(err, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", err)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to update session activity", err)
	}

	current, getErr := s.repo.GetSession(ctx, sessionID)
	if getErr != nil {
		if errors.Is(getErr, ErrNotFound) {
			return model.ChatSessionItem{}, newError(ErrorCodeNotFound, "session not found", getErr)
		}
		return model.ChatSessionItem{}, newError(ErrorCodeInternal, "failed to fetch session", getErr)
	}
	if current.Status == model.SessionStatusClosed {
		return model.ChatSessionItem{}, newConflictError(ErrorCodeSessionClosed, "session is closed", current)
	}
	return model.ChatSessionItem{}, newConflictError(ErrorCodeNotAuthorizedHandler, "caller is not the current handler", current)
}

func (s *Service) storeMessage(ctx context.Context, session model.ChatSessionItem, message model.MessageItem) (model.MessageItem, error) {
	now := s.timestamp()
	message.SessionID = session.SessionID
	message.MessageID = uuid.NewString()
	message.CreatedAt = now
	message.SK = model.MessageSK(now, message.MessageID)

	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return model.MessageItem{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	s.publisher.NewMessage(session, message)
	return message, nil
}

func (s *Service) ListSessions(ctx context.Context, params ListSessionsParams) (ListSessionsResult, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return ListSessionsResult{}, newError(ErrorCodeInternal, "failed to list sessions", err)
	}

	search := strings.ToLower(strings.TrimSpace(params.Search))
	filtered := make([]model.ChatSessionItem, 0, len(sessions))
	for _, session := range sessions {
		if params.Status != "" && session.Status != params.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(session.UserName), search) &&
			!strings.Contains(strings.ToLower(session.UserID), search) {
			continue
		}
		filtered = append(filtered, session)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].LastActivity > filtered[j].LastActivity
	})

	total := len(filtered)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return ListSessionsResult{
		Sessions: filtered[start:end],
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}

// ListMessages pages backwards through a session's history: page 1 is the
// most recent window, each page is returned oldest-first.
func (s *Service) ListMessages(ctx context.Context, sessionID string, page, limit int) (ListMessagesResult, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return ListMessagesResult{}, err
	}

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return ListMessagesResult{}, newError(ErrorCodeInternal, "failed to list messages", err)
	}

	total := len(messages)
	end := total - (page-1)*limit
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	return ListMessagesResult{
		Session:  session,
		Messages: messages[start:end],
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}

func (s *Service) Stats(ctx context.Context) (StatsResult, error) {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return StatsResult{}, newError(ErrorCodeInternal, "failed to load stats", err)
	}

	result := StatsResult{
		TotalSessions: len(sessions),
		ByStatus:      make(map[model.SessionStatus]int),
	}
	for _, session := range sessions {
		result.ByStatus[session.Status]++
		result.TotalMessages += session.UserMessages + session.AIMessages + session.OperatorMessages
	}

	if s.connected != nil {
		count, err := s.connected(ctx)
		if err == nil {
			result.ConnectedUsers = count
		}
	}

	return result, nil
}
