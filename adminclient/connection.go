package adminclient

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateFaulted
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFaulted:
		return "faulted"
	}
	return "disconnected"
}

// Conn is the transport surface the manager needs; *websocket.Conn
// satisfies it, tests substitute an in-memory pipe.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

type Dialer func(ctx context.Context, url string) (Conn, error)

func defaultDialer(ctx context.Context, rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type listenerEntry struct {
	id int
	fn func(Frame)
}

const (
	backoffBase = 500 * time.Millisecond
	backoffMax  = 30 * time.Second
)

// ConnectionManager owns one realtime connection: the auth handshake,
// reconnect with bounded backoff, room membership replay, and dispatch of
// inbound frames to listeners. Room membership is not carried over by the
// transport, so the manager replays the full room set after every reconnect.
type ConnectionManager struct {
	url   string
	token string
	dial  Dialer

	// OnStateChange, when set before Connect, observes every transition.
	OnStateChange func(ConnState)

	mu        sync.Mutex
	state     ConnState
	conn      Conn
	rooms     map[string]bool
	listeners map[string][]listenerEntry
	nextID    int
	closed    bool
	cancel    context.CancelFunc

	writeMu sync.Mutex
}

func NewConnectionManager(url, token string) *ConnectionManager {
	return &ConnectionManager{
		url:       url,
		token:     token,
		dial:      defaultDialer,
		rooms:     make(map[string]bool),
		listeners: make(map[string][]listenerEntry),
	}
}

// SetDialer overrides the transport dialer, used by tests.
func (cm *ConnectionManager) SetDialer(dial Dialer) {
	cm.dial = dial
}

func (cm *ConnectionManager) State() ConnState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}

// Subscribe registers a listener for one event type and returns its
// unsubscribe function. After unsubscribe returns, the listener is never
// invoked again.
func (cm *ConnectionManager) Subscribe(event string, fn func(Frame)) func() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.nextID++
	id := cm.nextID
	cm.listeners[event] = append(cm.listeners[event], listenerEntry{id: id, fn: fn})

	return func() {
		cm.mu.Lock()
		defer cm.mu.Unlock()
		entries := cm.listeners[event]
		for i, entry := range entries {
			if entry.id == id {
				cm.listeners[event] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}
}

// Connect starts the connection loop. It returns immediately; observe
// progress via OnStateChange or State.
func (cm *ConnectionManager) Connect() error {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return ErrClosed
	}
	if cm.cancel != nil {
		cm.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cm.cancel = cancel
	cm.mu.Unlock()

	go cm.run(ctx)
	return nil
}

// JoinChat adds the chat room to the replayed membership set and, when
// connected, joins it immediately.
func (cm *ConnectionManager) JoinChat(sessionID string) error {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return ErrClosed
	}
	cm.rooms[sessionID] = true
	conn := cm.activeConn()
	cm.mu.Unlock()

	if conn != nil {
		return cm.writeFrame(conn, commandJoinChat, map[string]string{"sessionId": sessionID})
	}
	return nil
}

func (cm *ConnectionManager) LeaveChat(sessionID string) error {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return ErrClosed
	}
	delete(cm.rooms, sessionID)
	conn := cm.activeConn()
	cm.mu.Unlock()

	if conn != nil {
		return cm.writeFrame(conn, commandLeaveChat, map[string]string{"sessionId": sessionID})
	}
	return nil
}

// Send emits an arbitrary command frame when connected.
func (cm *ConnectionManager) Send(event string, data interface{}) error {
	cm.mu.Lock()
	conn := cm.activeConn()
	cm.mu.Unlock()

	if conn == nil {
		return ErrClosed
	}
	return cm.writeFrame(conn, event, data)
}

// Close tears the manager down: terminates the transport, clears rooms and
// listeners, and is safe to call while a connect attempt is in flight.
func (cm *ConnectionManager) Close() {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return
	}
	cm.closed = true
	if cm.cancel != nil {
		cm.cancel()
	}
	if cm.conn != nil {
		cm.conn.Close()
	}
	cm.rooms = make(map[string]bool)
	cm.listeners = make(map[string][]listenerEntry)
	cm.mu.Unlock()

	cm.setState(StateDisconnected)
}

// must hold cm.mu
func (cm *ConnectionManager) activeConn() Conn {
	if cm.state != StateConnected {
		return nil
	}
	return cm.conn
}

func (cm *ConnectionManager) run(ctx context.Context) {
	backoff := backoffBase

	for {
		if ctx.Err() != nil {
			return
		}

		cm.setState(StateConnecting)

		conn, err := cm.dial(ctx, cm.url)
		if err != nil {
			cm.setState(StateDisconnected)
			if !cm.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		if ctx.Err() != nil {
			// Close raced the dial; the manager is already torn down.
			conn.Close()
			return
		}

		if err := cm.handshake(conn); err != nil {
			conn.Close()
			cm.setState(StateDisconnected)
			if !cm.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		cm.mu.Lock()
		if cm.closed || ctx.Err() != nil {
			// Close raced the handshake; never commit a connection the
			// caller has already torn down.
			cm.mu.Unlock()
			conn.Close()
			return
		}
		cm.conn = conn
		cm.state = StateConnected
		rooms := make([]string, 0, len(cm.rooms))
		for room := range cm.rooms {
			rooms = append(rooms, room)
		}
		cm.mu.Unlock()
		cm.notifyState(StateConnected)

		// Room membership is replayed from scratch on every connect.
		cm.writeFrame(conn, commandJoinAdminRoom, nil)
		for _, room := range rooms {
			cm.writeFrame(conn, commandJoinChat, map[string]string{"sessionId": room})
		}

		backoff = backoffBase
		faulted := cm.readFrames(ctx, conn)

		conn.Close()
		cm.mu.Lock()
		cm.conn = nil
		cm.mu.Unlock()

		if faulted {
			// Auth rejection stops automatic reconnection entirely.
			cm.setState(StateFaulted)
			return
		}
		cm.setState(StateDisconnected)

		if !cm.sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (cm *ConnectionManager) handshake(conn Conn) error {
	return conn.WriteJSON(map[string]string{
		"token":    cm.token,
		"userType": "admin",
	})
}

// readFrames consumes until the transport fails; the return value reports
// whether the server rejected our credentials.
func (cm *ConnectionManager) readFrames(ctx context.Context, conn Conn) bool {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				log.Printf("adminclient: read error: %v", err)
			}
			return false
		}
		if frame.Event == EventAuthError {
			return true
		}
		cm.dispatch(frame)
	}
}

func (cm *ConnectionManager) dispatch(frame Frame) {
	cm.mu.Lock()
	entries := cm.listeners[frame.Event]
	fns := make([]func(Frame), 0, len(entries))
	for _, entry := range entries {
		fns = append(fns, entry.fn)
	}
	cm.mu.Unlock()

	for _, fn := range fns {
		fn(frame)
	}
}

func (cm *ConnectionManager) writeFrame(conn Conn, event string, data interface{}) error {
	frame := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		frame.Data = raw
	}

	cm.writeMu.Lock()
	defer cm.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

func (cm *ConnectionManager) setState(state ConnState) {
	cm.mu.Lock()
	changed := cm.state != state
	cm.state = state
	cm.mu.Unlock()

	if changed {
		cm.notifyState(state)
	}
}

func (cm *ConnectionManager) notifyState(state ConnState) {
	if cm.OnStateChange != nil {
		cm.OnStateChange(state)
	}
}

func (cm *ConnectionManager) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > backoffMax {
		return backoffMax
	}
	return next
}
