package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"support-chat-backend/internal/dto"
	"support-chat-backend/internal/env"
	"support-chat-backend/internal/jwt"
	"support-chat-backend/internal/service/handoff"
)

var (
	upgrader    websocket.Upgrader
	redisClient *redis.Client
)

func init() {
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:     env.Get("CHAT_REDIS_URL"),
		Password: env.Get("CHAT_REDIS_PASS"),
		DB:       0,
	})
}

const authHandshakeTimeout = 10 * time.Second

// Gateway owns the websocket side of the system: it authenticates incoming
// connections, relays room events from Redis into the hub, and executes the
// commands admin clients send over the socket.
type Gateway struct {
	hub       *Hub
	redis     *redis.Client
	service   *handoff.Service
	publisher *RedisPublisher
	presence  *Presence
}

func NewGateway(hub *Hub, service *handoff.Service) *Gateway {
	publisher := NewRedisPublisher(redisClient)
	return &Gateway{
		hub:       hub,
		redis:     redisClient,
		service:   service,
		publisher: publisher,
		presence:  NewPresence(redisClient, publisher),
	}
}

func (g *Gateway) Publisher() *RedisPublisher {
	return g.publisher
}

// SetService wires the handoff service after construction; the service needs
// the gateway's publisher first, so the two are connected in two steps.
func (g *Gateway) SetService(service *handoff.Service) {
	g.service = service
}

func (g *Gateway) Presence() *Presence {
	return g.presence
}

// Run drives the hub and keeps exactly one Redis subscription alive per room
// that has local subscribers.
func (g *Gateway) Run() {
	go g.hub.Run()

	subscriptions := make(map[string]*redis.PubSub)
	for {
		select {
		case room := <-g.hub.RoomOpened():
			if _, ok := subscriptions[room]; ok {
				continue
			}
			subscriber := g.redis.Subscribe(context.Background(), room)
			subscriptions[room] = subscriber
			go g.relayRoomChannel(room, subscriber)

		case room := <-g.hub.RoomClosed():
			if subscriber, ok := subscriptions[room]; ok {
				subscriber.Close()
				delete(subscriptions, room)
			}
		}
	}
}

func (g *Gateway) relayRoomChannel(room string, subscriber *redis.PubSub) {
	ch := subscriber.Channel()
	for msg := range ch {
		var frame Frame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			log.Printf("Error decoding payload from channel %s: %v", room, err)
			continue
		}
		g.hub.Broadcast <- RoomFrame{Room: room, Frame: frame}
	}
	log.Printf("Unsubscribed from Redis channel: %s", room)
}

// HandleSocket upgrades the request and runs the connection. The first frame
// the peer sends must be an auth frame; everything after it is commands.
func (g *Gateway) HandleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Printf("gateway: websocket upgrade failed: %v", err)
		return
	}

	client, ok := g.authenticate(conn, r)
	if !ok {
		conn.Close()
		return
	}

	g.hub.Register <- client
	go client.keepAlive()
	go client.writeLoop()

	if client.UserType == jwt.UserTypeUser {
		sessionID := r.URL.Query().Get("sessionId")
		if sessionID != "" {
			g.hub.Join <- Membership{Client: client, Room: ChatRoom(sessionID)}
		}
		g.presence.Online(r.Context(), client.ID)
	}

	go g.readLoop(client)
}

func (g *Gateway) authenticate(conn *websocket.Conn, r *http.Request) (*Client, bool) {
	conn.SetReadDeadline(time.Now().Add(authHandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var auth AuthFrame
	if err := conn.ReadJSON(&auth); err != nil {
		log.Printf("Error reading auth frame: %v", err)
		return nil, false
	}

	role, ok := jwt.RoleForUserType(jwt.UserType(auth.UserType))
	if !ok {
		writeAuthError(conn, "unknown user type")
		return nil, false
	}

	claims, err := jwt.ParseToken(auth.Token, role)
	if err != nil {
		writeAuthError(conn, "invalid token")
		return nil, false
	}

	identity := jwt.OperatorFromClaims(claims)
	return newClient(conn, identity.Id, jwt.UserType(auth.UserType), identity), true
}

func writeAuthError(conn *websocket.Conn, message string) {
	frame, err := NewFrame(EventAuthError, ErrorEvent{Code: "unauthorized", Message: message})
	if err != nil {
		return
	}
	if err := conn.WriteJSON(frame); err != nil {
		log.Printf("Error writing auth error frame: %v", err)
	}
}

func (g *Gateway) readLoop(client *Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in readLoop: %v", r)
		}

		client.stop()
		if client.UserType == jwt.UserTypeUser {
			g.presence.Offline(context.Background(), client.ID)
		}
		g.hub.Unregister <- client
		log.Printf("Client %s disconnected", client.ID)
	}()

	client.Conn.SetReadLimit(512 * 1024)

	for {
		var frame Frame
		if err := client.Conn.ReadJSON(&frame); err != nil {
			if !isExpectedClose(err) {
				log.Printf("Error reading frame from client %s: %v", client.ID, err)
			}
			break
		}
		g.dispatch(client, frame)
	}
}

func (g *Gateway) dispatch(client *Client, frame Frame) {
	switch frame.Event {
	case CommandJoinAdminRoom:
		if client.UserType != jwt.UserTypeAdmin {
			client.send(EventError, ErrorEvent{Code: "unauthorized", Message: "admin room requires an operator token"})
			return
		}
		g.hub.Join <- Membership{Client: client, Room: AdminRoom}

	case CommandJoinChat:
		cmd, ok := decodeChatCommand(client, frame)
		if !ok {
			return
		}
		g.hub.Join <- Membership{Client: client, Room: ChatRoom(cmd.SessionID)}

	case CommandLeaveChat:
		cmd, ok := decodeChatCommand(client, frame)
		if !ok {
			return
		}
		g.hub.Leave <- Membership{Client: client, Room: ChatRoom(cmd.SessionID)}

	case CommandTakeChat:
		cmd, ok := decodeChatCommand(client, frame)
		if !ok {
			return
		}
		if client.UserType != jwt.UserTypeAdmin {
			client.send(EventError, ErrorEvent{Code: "unauthorized", Message: "taking a chat requires an operator token"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := g.service.Take(ctx, cmd.SessionID, client.ID)
		cancel()
		if err != nil {
			sendServiceError(client, err)
		}

	case CommandReleaseChat:
		cmd, ok := decodeChatCommand(client, frame)
		if !ok {
			return
		}
		if client.UserType != jwt.UserTypeAdmin {
			client.send(EventError, ErrorEvent{Code: "unauthorized", Message: "releasing a chat requires an operator token"})
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := g.service.Release(ctx, cmd.SessionID, client.ID)
		cancel()
		if err != nil {
			sendServiceError(client, err)
		}

	case CommandTypingStart, CommandTypingStop:
		var typing TypingEvent
		if frame.Data != nil {
			if err := json.Unmarshal(frame.Data, &typing); err != nil {
				client.send(EventError, ErrorEvent{Code: "validation_error", Message: "invalid typing payload"})
				return
			}
		}
		if typing.SessionID == "" {
			client.send(EventError, ErrorEvent{Code: "validation_error", Message: "sessionId is required"})
			return
		}
		typing.Author = client.ID
		g.publisher.publish(ChatRoom(typing.SessionID), frame.Event, typing)

	default:
		client.send(EventError, ErrorEvent{Code: "validation_error", Message: "unknown event: " + frame.Event})
	}
}

func decodeChatCommand(client *Client, frame Frame) (ChatCommand, bool) {
	var cmd ChatCommand
	if frame.Data != nil {
		if err := json.Unmarshal(frame.Data, &cmd); err != nil {
			client.send(EventError, ErrorEvent{Code: "validation_error", Message: "invalid command payload"})
			return ChatCommand{}, false
		}
	}
	if cmd.SessionID == "" {
		client.send(EventError, ErrorEvent{Code: "validation_error", Message: "sessionId is required"})
		return ChatCommand{}, false
	}
	return cmd, true
}

// sendServiceError mirrors the REST conflict contract onto the socket: the
// caller gets the error code plus the canonical session when one is known.
func sendServiceError(client *Client, err error) {
	var serviceErr *handoff.Error
	if errors.As(err, &serviceErr) {
		var session *dto.SessionResponse
		if serviceErr.Session != nil {
			converted := dto.FromSession(*serviceErr.Session)
			session = &converted
		}
		client.send(EventError, ErrorEvent{
			Code:    string(serviceErr.Code),
			Message: serviceErr.Message,
			Session: session,
		})
		return
	}
	client.send(EventError, ErrorEvent{Code: "internal_error", Message: "operation failed"})
}
