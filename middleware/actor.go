package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// ActorKey is the request-context key carrying the attributed actor id.
const ActorKey contextKey = "actor"

// DefaultActor is attributed when a request carries no identity at all.
// Worker-driven mutations also run as this actor.
const DefaultActor = "system"

// ActorMiddleware resolves who is making each request so every ownership
// change can be attributed in the ledger and audit log. Identity comes from a
// bearer token when present, falling back to the X-Actor-ID header for
// trusted internal callers. Requests are never rejected here; attribution is
// best-effort and unauthenticated calls run as the system actor.
type ActorMiddleware struct {
	jwtSecret []byte
}

// NewActorMiddleware creates a new actor middleware
func NewActorMiddleware(jwtSecret string) *ActorMiddleware {
	return &ActorMiddleware{jwtSecret: []byte(jwtSecret)}
}

// Attribute resolves the actor and sets it in the request context
func (m *ActorMiddleware) Attribute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := m.resolveActor(r)
		ctx := context.WithValue(r.Context(), ActorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *ActorMiddleware) resolveActor(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && len(m.jwtSecret) > 0 {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			if actor := m.actorFromToken(parts[1]); actor != "" {
				return actor
			}
		}
	}
	if actor := strings.TrimSpace(r.Header.Get("X-Actor-ID")); actor != "" {
		if actorType := strings.TrimSpace(r.Header.Get("X-Actor-Type")); actorType != "" {
			return actorType + ":" + actor
		}
		return actor
	}
	return DefaultActor
}

func (m *ActorMiddleware) actorFromToken(tokenString string) string {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	if sub, _ := claims["sub"].(string); sub != "" {
		if actorType, _ := claims["actor_type"].(string); actorType != "" {
			return actorType + ":" + sub
		}
		return sub
	}
	return ""
}

// Actor returns the attributed actor from a request context.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(ActorKey).(string); ok && actor != "" {
		return actor
	}
	return DefaultActor
}
