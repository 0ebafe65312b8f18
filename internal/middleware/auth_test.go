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

var testSecret = []byte("test-secret")

func signTestToken(t *testing.T, userID, role string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func authedHandler() (http.Handler, *string) {
	var seenUser string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return handler, &seenUser
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	handler, seenUser := authedHandler()
	mw := NewAuthMiddleware(testSecret, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/trades", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "acct-1", "user", time.Hour))
	rec := httptest.NewRecorder()

	mw.Handler(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acct-1", *seenUser)
}

func TestAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	handler, seenUser := authedHandler()
	mw := NewAuthMiddleware(testSecret, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+signTestToken(t, "acct-2", "user", time.Hour), nil)
	rec := httptest.NewRecorder()

	mw.Handler(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acct-2", *seenUser)
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	handler, _ := authedHandler()
	mw := NewAuthMiddleware(testSecret, nil, nil)

	cases := map[string]func(r *http.Request){
		"missing header": func(r *http.Request) {},
		"bad format": func(r *http.Request) {
			r.Header.Set("Authorization", "Token abc")
		},
		"expired": func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signTestToken(t, "acct-1", "user", -time.Hour))
		},
		"wrong secret": func(r *http.Request) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
				UserID:           "acct-1",
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
			}).SignedString([]byte("other-secret"))
			require.NoError(t, err)
			r.Header.Set("Authorization", "Bearer "+token)
		},
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/trades", nil)
			setup(req)
			rec := httptest.NewRecorder()

			mw.Handler(handler).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestAuthMiddlewareSkipsPaths(t *testing.T) {
	handler, _ := authedHandler()
	mw := NewAuthMiddleware(testSecret, nil, []string{"/auth/login"})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rec := httptest.NewRecorder()

	mw.Handler(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := NewAuthMiddleware(testSecret, nil, nil)
	protected := mw.Handler(RequireRole("admin")(inner))

	req := httptest.NewRequest(http.MethodGet, "/admin/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "acct-1", "user", time.Hour))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "acct-9", "admin", time.Hour))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
