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

func signToken(t *testing.T, secret, subject string, scopes []string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scopes: scopes,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authProbe(t *testing.T, authorization string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var ownerID string
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID = GetOwnerID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, ownerID
}

func TestAuthValidToken(t *testing.T) {
	token := signToken(t, testSecret, "owner-42", []string{"sessions:write"})

	rec, ownerID := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-42", ownerID)
}

func TestAuthMissingHeader(t *testing.T) {
	rec, _ := authProbe(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMalformedHeader(t *testing.T) {
	rec, _ := authProbe(t, "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthWrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", "owner-42", nil)

	rec, _ := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthExpiredToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "owner-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec, _ := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthEmptySubject(t *testing.T) {
	token := signToken(t, testSecret, "", nil)

	rec, _ := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHasScope(t *testing.T) {
	token := signToken(t, testSecret, "owner-42", []string{"sessions:read"})

	var got bool
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = HasScope(r.Context(), "sessions:read")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, got)
}
