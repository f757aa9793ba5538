package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"

	"support-chat-backend/internal/dto"
	"support-chat-backend/internal/model"
)

// RedisPublisher fans transition events out through Redis so every gateway
// instance, not just the one that handled the HTTP call, rebroadcasts them.
// Publishing is fire and forget: failures are logged and never travel back
// into the transition that produced the event.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) SessionUpdated(session model.ChatSessionItem) {
	payload := SessionEvent{Session: dto.FromSession(session)}
	p.publish(AdminRoom, EventSessionUpdated, payload)
	p.publish(ChatRoom(session.SessionID), EventSessionUpdated, payload)
}

func (p *RedisPublisher) NewMessage(session model.ChatSessionItem, message model.MessageItem) {
	payload := MessageEvent{Session: dto.FromSession(session), Message: dto.FromMessage(message)}
	p.publish(AdminRoom, EventNewMessage, payload)
	p.publish(ChatRoom(session.SessionID), EventNewMessage, payload)
}

func (p *RedisPublisher) OperatorRequested(session model.ChatSessionItem) {
	p.publish(AdminRoom, EventOperatorRequested, SessionEvent{Session: dto.FromSession(session)})
}

func (p *RedisPublisher) publish(room, event string, data interface{}) {
	frame, err := NewFrame(event, data)
	if err != nil {
		log.Printf("Error encoding %s event for room %s: %v", event, room, err)
		return
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Error marshaling %s event for room %s: %v", event, room, err)
		return
	}
	if err := p.client.Publish(context.Background(), room, string(raw)).Err(); err != nil {
		log.Printf("Error publishing %s event to room %s: %v", event, room, err)
	}
}
