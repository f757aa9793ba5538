package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"support-chat-backend/internal/jwt"
)

type Client struct {
	Conn     *websocket.Conn
	Send     chan Frame
	ID       string
	UserType jwt.UserType
	Identity jwt.Operator
	done     chan struct{} // Signal for coordinating goroutine shutdown
	stopOnce sync.Once
	mu       sync.Mutex // Mutex for connection access
	isClosed bool       // Flag to track connection state
}

// stop tears the client down exactly once, whether the read loop ended or
// the hub evicted it.
func (cl *Client) stop() {
	cl.stopOnce.Do(func() {
		close(cl.done)
	})
}

func newClient(conn *websocket.Conn, id string, userType jwt.UserType, identity jwt.Operator) *Client {
	return &Client{
		Conn:     conn,
		Send:     make(chan Frame, 16),
		ID:       id,
		UserType: userType,
		Identity: identity,
		done:     make(chan struct{}),
	}
}

func (cl *Client) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-ticker.C:
			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteMessage(websocket.PingMessage, nil)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("Ping error for client %s: %v", cl.ID, err)
				return
			}
		}
	}
}

func (cl *Client) writeLoop() {
	defer func() {
		cl.mu.Lock()
		cl.isClosed = true
		cl.Conn.Close()
		cl.mu.Unlock()
	}()

	for {
		select {
		case <-cl.done:
			return
		case frame, ok := <-cl.Send:
			if !ok {
				return
			}

			cl.mu.Lock()
			if cl.isClosed {
				cl.mu.Unlock()
				return
			}
			err := cl.Conn.WriteJSON(frame)
			cl.mu.Unlock()

			if err != nil {
				log.Printf("Error sending frame to client %s: %v", cl.ID, err)
				return
			}
		}
	}
}

// send queues a frame for this client only, bypassing the hub's rooms.
func (cl *Client) send(event string, data interface{}) {
	frame, err := NewFrame(event, data)
	if err != nil {
		log.Printf("Error encoding %s frame for client %s: %v", event, cl.ID, err)
		return
	}
	select {
	case cl.Send <- frame:
	case <-cl.done:
	default:
	}
}

func isExpectedClose(err error) bool {
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		return false
	}
	return closeErr.Code == websocket.CloseNormalClosure ||
		closeErr.Code == websocket.CloseGoingAway ||
		closeErr.Code == websocket.CloseNoStatusReceived
}
