package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultRequestTimeout = 15 * time.Second

// REST talks to the admin HTTP surface with a bearer token. Every call takes
// a context; cancelling it abandons the request without applying its result.
type REST struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewREST(baseURL, token string) *REST {
	return &REST{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

// SetHTTPClient overrides the underlying client, used by tests.
func (r *REST) SetHTTPClient(client *http.Client) {
	r.client = client
}

type ListSessionsParams struct {
	Page   int
	Limit  int
	Search string
	Status string
}

func (r *REST) ListSessions(ctx context.Context, params ListSessionsParams) (SessionsPage, error) {
	query := url.Values{}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Search != "" {
		query.Set("search", params.Search)
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}

	var page SessionsPage
	err := r.do(ctx, http.MethodGet, "/chat/sessions", query, nil, &page)
	return page, err
}

func (r *REST) ListMessages(ctx context.Context, sessionID string, page, limit int) (MessagesPage, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var result MessagesPage
	err := r.do(ctx, http.MethodGet, "/chat/sessions/"+url.PathEscape(sessionID)+"/messages", query, nil, &result)
	return result, err
}

func (r *REST) Take(ctx context.Context, sessionID string) (ChatSession, error) {
	var session ChatSession
	err := r.do(ctx, http.MethodPost, "/chat/take", nil, map[string]string{"sessionId": sessionID}, &session)
	return session, err
}

func (r *REST) Release(ctx context.Context, sessionID string) (ChatSession, error) {
	var session ChatSession
	err := r.do(ctx, http.MethodPost, "/chat/release", nil, map[string]string{"sessionId": sessionID}, &session)
	return session, err
}

func (r *REST) Close(ctx context.Context, sessionID string) (ChatSession, error) {
	var session ChatSession
	err := r.do(ctx, http.MethodPost, "/chat/close", nil, map[string]string{"sessionId": sessionID}, &session)
	return session, err
}

func (r *REST) SendMessage(ctx context.Context, sessionID, text string) (Message, error) {
	var message Message
	err := r.do(ctx, http.MethodPost, "/chat/send", nil, map[string]string{
		"sessionId": sessionID,
		"message":   text,
	}, &message)
	return message, err
}

func (r *REST) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.do(ctx, http.MethodGet, "/chat/stats", nil, nil, &stats)
	return stats, err
}

func (r *REST) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := r.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	return decodeAPIError(resp)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: CodeInternal}

	var body struct {
		Message string       `json:"message"`
		Code    string       `json:"code"`
		Session *ChatSession `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Message
		apiErr.Session = body.Session
		if body.Code != "" {
			apiErr.Code = ErrorCode(body.Code)
		} else {
			apiErr.Code = codeForStatus(resp.StatusCode)
		}
	} else {
		apiErr.Code = codeForStatus(resp.StatusCode)
		apiErr.Message = resp.Status
	}

	return apiErr
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeNotAuthorizedHandler
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeAlreadyHandled
	}
	return CodeInternal
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
