package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func attributedActor(t *testing.T, m *ActorMiddleware, mutate func(r *http.Request)) string {
	t.Helper()
	var got string
	handler := m.Attribute(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Actor(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/allocations", nil)
	mutate(req)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAttributeDefaultsToSystem(t *testing.T) {
	m := NewActorMiddleware(testSecret)
	actor := attributedActor(t, m, func(r *http.Request) {})
	assert.Equal(t, DefaultActor, actor)
}

func TestAttributeFromBearerToken(t *testing.T) {
	m := NewActorMiddleware(testSecret)
	token := signToken(t, jwt.MapClaims{
		"sub":        "priya",
		"actor_type": "ops",
		"exp":        time.Now().Add(time.Hour).Unix(),
	})
	actor := attributedActor(t, m, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	assert.Equal(t, "ops:priya", actor)
}

func TestAttributeRejectsBadToken(t *testing.T) {
	m := NewActorMiddleware(testSecret)

	// Wrong signing key falls through to the default actor rather than 401:
	// attribution is best-effort, not access control.
	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "mallory"})
	signed, err := other.SignedString([]byte("different-secret"))
	require.NoError(t, err)

	actor := attributedActor(t, m, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+signed)
	})
	assert.Equal(t, DefaultActor, actor)
}

func TestAttributeFromHeaders(t *testing.T) {
	m := NewActorMiddleware(testSecret)

	actor := attributedActor(t, m, func(r *http.Request) {
		r.Header.Set("X-Actor-Type", "dialer")
		r.Header.Set("X-Actor-ID", "42")
	})
	assert.Equal(t, "dialer:42", actor)

	actor = attributedActor(t, m, func(r *http.Request) {
		r.Header.Set("X-Actor-ID", "42")
	})
	assert.Equal(t, "42", actor)
}

func TestActorFallsBackWithoutContextValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, DefaultActor, Actor(req.Context()))
}
