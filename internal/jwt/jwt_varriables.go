package jwt

import (
	"time"

	"support-chat-backend/internal/env"

	"github.com/go-redis/redis/v8"
)

var (
	USER_SECRET  string
	ADMIN_SECRET string
	RedisClient  *redis.Client
)

const RefreshTokenTTL = 24 * 30 * time.Hour

const (
	RoleUser Role = iota
	RoleAdmin
)

var RoleSecrets = map[Role]string{
	RoleUser:  USER_SECRET,
	RoleAdmin: ADMIN_SECRET,
}

func init() {
	USER_SECRET = env.Get("USER_SECRET")
	ADMIN_SECRET = env.Get("ADMIN_SECRET")

	RoleSecrets[RoleUser] = USER_SECRET
	RoleSecrets[RoleAdmin] = ADMIN_SECRET

	RedisClient = redis.NewClient(&redis.Options{
		Addr:     env.Get("AUTH_REDIS_URL"),
		Password: env.Get("AUTH_REDIS_PASS"),
		DB:       0,
	})
}

// RoleForUserType maps a realtime handshake userType claim to the token role
// that must have signed it.
func RoleForUserType(userType UserType) (Role, bool) {
	switch userType {
	case UserTypeAdmin:
		return RoleAdmin, true
	case UserTypeUser:
		return RoleUser, true
	}
	return 0, false
}
