package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	internal_jwt "support-chat-backend/internal/jwt"

	"support-chat-backend/internal/env"
)

func ValidateJWTMiddleware(role internal_jwt.Role) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")

			if !strings.HasPrefix(tokenString, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString = tokenString[len("Bearer "):]

			claims, err := internal_jwt.ParseToken(tokenString, role)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			expires := int64(claims["exp"].(float64))
			if time.Now().Unix() > expires {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

// ValidateServiceKey guards the internal routes the AI collaborator calls.
// The key is shared out of band via SERVICE_API_KEY.
func ValidateServiceKey() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			expected := env.Get("SERVICE_API_KEY")
			provided := r.Header.Get("X-Api-Key")

			if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}

var ValidateAdminJWT = ValidateJWTMiddleware(internal_jwt.RoleAdmin)
var ValidateUserJWT = ValidateJWTMiddleware(internal_jwt.RoleUser)
