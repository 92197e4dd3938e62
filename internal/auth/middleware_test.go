package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(t *testing.T, mw *Middleware, method, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	return resp.Code
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy(nil, nil))
	assert.Equal(t, http.StatusUnauthorized, serve(t, mw, http.MethodGet, "/api/v1/tags", ""))
}

func TestAuthMiddleware_ViewerForbiddenScenarioTrigger(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer", time.Hour)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	assert.Equal(t, http.StatusForbidden, serve(t, mw, http.MethodPost, "/api/v1/scenarios/a", token))
	assert.Equal(t, http.StatusOK, serve(t, mw, http.MethodGet, "/api/v1/scenarios", token))
}

func TestAuthMiddleware_ViewerForbiddenTagWrite(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer", time.Hour)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	assert.Equal(t, http.StatusForbidden, serve(t, mw, http.MethodPut, "/api/v1/tags/MMA.GuardDoor1", token))
	assert.Equal(t, http.StatusOK, serve(t, mw, http.MethodGet, "/api/v1/tags/MMA.GuardDoor1", token))
}

func TestAuthMiddleware_OperatorTriggersScenario(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueJWT(secret, "op-1", RoleOperator, time.Hour)
	require.NoError(t, err)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	assert.Equal(t, http.StatusOK, serve(t, mw, http.MethodPost, "/api/v1/scenarios/b", token))
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "admin", -time.Minute)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	assert.Equal(t, http.StatusUnauthorized, serve(t, mw, http.MethodGet, "/api/v1/tags", token))
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil))
	assert.Equal(t, http.StatusOK, serve(t, mw, http.MethodGet, "/healthz", ""))
	assert.Equal(t, http.StatusOK, serve(t, mw, http.MethodGet, "/metrics", ""))
}

func TestAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	mw := NewMiddleware(nil, NewDefaultPolicy(nil, nil))
	var role Role
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenarios/a", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, RoleAdmin, role)
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "viewer", time.Hour)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tags/stream?access_token="+token, nil)
	resp := httptest.NewRecorder()
	mw.Wrap(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func mustToken(t *testing.T, secret []byte, role string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
