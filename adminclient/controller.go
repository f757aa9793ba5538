package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// HandoffController drives take/release for one session on behalf of one
// operator. It never flips local state optimistically: an action marks the
// controller pending, and the view updates only from the REST response or
// the broadcast snapshot, whichever carries the newer version.
type HandoffController struct {
	rest       *REST
	view       *SessionViewModel
	operatorID string

	mu      sync.Mutex
	pending bool

	unsubscribes []func()
}

func NewHandoffController(rest *REST, view *SessionViewModel, operatorID string) *HandoffController {
	return &HandoffController{
		rest:       rest,
		view:       view,
		operatorID: operatorID,
	}
}

// Attach subscribes the controller's view to the connection's session and
// message events. Detach removes the subscriptions.
func (c *HandoffController) Attach(cm *ConnectionManager) {
	unsubSession := cm.Subscribe(EventSessionUpdated, func(frame Frame) {
		var event SessionEvent
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			return
		}
		c.view.ApplySession(event.Session)
	})

	unsubMessage := cm.Subscribe(EventNewMessage, func(frame Frame) {
		var event MessageEvent
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			return
		}
		c.view.ApplySession(event.Session)
		c.view.ApplyStreamed(event.Message)
	})

	c.mu.Lock()
	c.unsubscribes = append(c.unsubscribes, unsubSession, unsubMessage)
	c.mu.Unlock()
}

func (c *HandoffController) Detach() {
	c.mu.Lock()
	unsubs := c.unsubscribes
	c.unsubscribes = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// Pending reports whether a take or release is awaiting confirmation; the UI
// renders it as a spinner on the handoff button.
func (c *HandoffController) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Take claims the session for this operator. On a lost race the canonical
// snapshot from the error body is applied before the error is returned, so
// the caller re-renders from authoritative state.
func (c *HandoffController) Take(ctx context.Context) error {
	if !c.begin() {
		return nil
	}
	defer c.end()

	session, err := c.rest.Take(ctx, c.view.Session().SessionID)
	if err != nil {
		c.reconcile(err)
		return err
	}
	c.view.ApplySession(session)
	return nil
}

// Release hands the session back to AI.
func (c *HandoffController) Release(ctx context.Context) error {
	if !c.begin() {
		return nil
	}
	defer c.end()

	session, err := c.rest.Release(ctx, c.view.Session().SessionID)
	if err != nil {
		c.reconcile(err)
		return err
	}
	c.view.ApplySession(session)
	return nil
}

// Send posts an operator message. The handler guard is evaluated against the
// latest snapshot at call time; a stale view fails locally with ErrNotHandler
// before any network traffic.
func (c *HandoffController) Send(ctx context.Context, text string) (Message, error) {
	if !c.view.CanSend(c.operatorID) {
		return Message{}, ErrNotHandler
	}

	message, err := c.rest.SendMessage(ctx, c.view.Session().SessionID, text)
	if err != nil {
		c.reconcile(err)
		return Message{}, err
	}
	return message, nil
}

func (c *HandoffController) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return false
	}
	c.pending = true
	return true
}

func (c *HandoffController) end() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
}

func (c *HandoffController) reconcile(err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Session != nil {
		c.view.ApplySession(*apiErr.Session)
	}
}
