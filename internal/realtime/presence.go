package realtime

import (
	"context"
	"log"

	"github.com/go-redis/redis/v8"
)

const presenceKey = "chat:presence"

// Presence tracks which end users currently hold a live connection, shared
// across gateway instances through a Redis set. Admin clients learn about
// changes via user_online / user_offline events on the admin room.
type Presence struct {
	client    *redis.Client
	publisher *RedisPublisher
}

func NewPresence(client *redis.Client, publisher *RedisPublisher) *Presence {
	return &Presence{client: client, publisher: publisher}
}

func (p *Presence) Online(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := p.client.SAdd(ctx, presenceKey, userID).Err(); err != nil {
		log.Printf("Error marking user %s online: %v", userID, err)
		return
	}
	p.publisher.publish(AdminRoom, EventUserOnline, PresenceEvent{UserID: userID})
}

func (p *Presence) Offline(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := p.client.SRem(ctx, presenceKey, userID).Err(); err != nil {
		log.Printf("Error marking user %s offline: %v", userID, err)
		return
	}
	p.publisher.publish(AdminRoom, EventUserOffline, PresenceEvent{UserID: userID})
}

func (p *Presence) Count(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceKey).Result()
}
