package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	in     chan Frame
	out    chan json.RawMessage
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan Frame, 16),
		out:    make(chan json.RawMessage, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(v interface{}) error {
	select {
	case frame := <-c.in:
		raw, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, v)
	case <-c.closed:
		return errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.out <- raw:
		return nil
	case <-c.closed:
		return errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) nextWrite(t *testing.T) json.RawMessage {
	t.Helper()
	select {
	case raw := <-c.out:
		return raw
	case <-time.After(time.Second):
		t.Fatal("no frame written to connection")
		return nil
	}
}

// fakeDialer hands out prepared connections in order and keeps a count of
// dial attempts.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	calls int
}

func (d *fakeDialer) dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.conns) == 0 {
		return nil, errors.New("no connection available")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func waitState(t *testing.T, cm *ConnectionManager, want ConnState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cm.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s, still %s", want, cm.State())
}

func decodeWritten(t *testing.T, raw json.RawMessage) Frame {
	t.Helper()
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("decode written frame: %v", err)
	}
	return frame
}

func TestConnectHandshakeAndRoomReplay(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	cm := NewConnectionManager("ws://test/api/ws/v1/chat", "token-1")
	cm.SetDialer(dialer.dial)
	defer cm.Close()

	if err := cm.JoinChat("s-1"); err != nil {
		t.Fatalf("JoinChat error: %v", err)
	}
	if err := cm.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	waitState(t, cm, StateConnected)

	var handshake struct {
		Token    string `json:"token"`
		UserType string `json:"userType"`
	}
	if err := json.Unmarshal(conn.nextWrite(t), &handshake); err != nil {
		t.Fatalf("decode handshake: %v", err)
	}
	if handshake.Token != "token-1" || handshake.UserType != "admin" {
		t.Fatalf("unexpected handshake %+v", handshake)
	}

	if frame := decodeWritten(t, conn.nextWrite(t)); frame.Event != commandJoinAdminRoom {
		t.Fatalf("expected %s, got %s", commandJoinAdminRoom, frame.Event)
	}

	join := decodeWritten(t, conn.nextWrite(t))
	if join.Event != commandJoinChat {
		t.Fatalf("expected %s, got %s", commandJoinChat, join.Event)
	}
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(join.Data, &payload); err != nil {
		t.Fatalf("decode join payload: %v", err)
	}
	if payload.SessionID != "s-1" {
		t.Fatalf("expected room s-1, got %s", payload.SessionID)
	}
}

func TestReconnectReplaysRooms(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}

	cm := NewConnectionManager("ws://test/api/ws/v1/chat", "token-1")
	cm.SetDialer(dialer.dial)
	defer cm.Close()

	if err := cm.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	waitState(t, cm, StateConnected)

	if err := cm.JoinChat("s-7"); err != nil {
		t.Fatalf("JoinChat error: %v", err)
	}

	// Drop the transport; the manager should dial again and replay the
	// admin room plus every joined chat room.
	first.Close()

	deadline := time.Now().Add(3 * time.Second)
	for dialer.dialCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if dialer.dialCount() < 2 {
		t.Fatal("manager never redialed")
	}
	waitState(t, cm, StateConnected)

	second.nextWrite(t) // handshake
	if frame := decodeWritten(t, second.nextWrite(t)); frame.Event != commandJoinAdminRoom {
		t.Fatalf("expected %s after reconnect, got %s", commandJoinAdminRoom, frame.Event)
	}
	join := decodeWritten(t, second.nextWrite(t))
	if join.Event != commandJoinChat {
		t.Fatalf("expected %s after reconnect, got %s", commandJoinChat, join.Event)
	}
}

func TestAuthErrorStopsRetrying(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn, newFakeConn()}}

	cm := NewConnectionManager("ws://test/api/ws/v1/chat", "bad-token")
	cm.SetDialer(dialer.dial)
	defer cm.Close()

	if err := cm.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	waitState(t, cm, StateConnected)

	conn.in <- Frame{Event: EventAuthError}
	waitState(t, cm, StateFaulted)

	// Faulted is terminal: no further dial however long we wait.
	time.Sleep(700 * time.Millisecond)
	if dialer.dialCount() != 1 {
		t.Fatalf("faulted manager dialed again, %d attempts", dialer.dialCount())
	}
}

func TestSubscribeDispatchAndUnsubscribe(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}

	cm := NewConnectionManager("ws://test/api/ws/v1/chat", "token-1")
	cm.SetDialer(dialer.dial)
	defer cm.Close()

	received := make(chan Frame, 4)
	unsubscribe := cm.Subscribe(EventSessionUpdated, func(frame Frame) {
		received <- frame
	})

	if err := cm.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	waitState(t, cm, StateConnected)

	data, _ := json.Marshal(SessionEvent{Session: snapshot(2, StatusWaitingOperator, "")})
	conn.in <- Frame{Event: EventSessionUpdated, Data: data}

	select {
	case frame := <-received:
		if frame.Event != EventSessionUpdated {
			t.Fatalf("unexpected event %s", frame.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("listener was not invoked")
	}

	unsubscribe()
	conn.in <- Frame{Event: EventSessionUpdated, Data: data}
	select {
	case <-received:
		t.Fatal("listener invoked after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseDuringConnect(t *testing.T) {
	cm := NewConnectionManager("ws://test/api/ws/v1/chat", "token-1")
	cm.SetDialer(func(ctx context.Context, url string) (Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	if err := cm.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	cm.Close()

	waitState(t, cm, StateDisconnected)
	if err := cm.Connect(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}

// slowHandshakeConn stalls the handshake write on gate so the test can
// interleave Close with an in-flight connect attempt.
type slowHandshakeConn struct {
	entered   chan struct{}
	gate      chan struct{}
	closed    chan struct{}
	enterOnce sync.Once
	closeOnce sync.Once
}

func newSlowHandshakeConn() *slowHandshakeConn {
	return &slowHandshakeConn{
		entered: make(chan struct{}),
		gate:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

func (c *slowHandshakeConn) ReadJSON(v interface{}) error {
	<-c.closed
	return errors.New("connection closed")
}

func (c *slowHandshakeConn) WriteJSON(v interface{}) error {
	c.enterOnce.Do(func() { close(c.entered) })
	<-c.gate
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
		return nil
	}
}

func (c *slowHandshakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func TestCloseDuringHandshake(t *testing.T) {
	conn := newSlowHandshakeConn()

	cm := NewConnectionManager("ws://test/api/ws/v1/chat", "token-1")
	cm.SetDialer(func(ctx context.Context, url string) (Conn, error) {
		return conn, nil
	})

	if err := cm.Connect(); err != nil {
		t.Fatalf("Connect error: %v", err)
	}

	<-conn.entered
	cm.Close()
	close(conn.gate)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cm.State() == StateConnected {
			t.Fatal("manager reached connected after Close returned")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if state := cm.State(); state != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", state)
	}

	select {
	case <-conn.closed:
	case <-time.After(time.Second):
		t.Fatal("transport left open after Close")
	}
}
