package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testIssuer = "gamification-test"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestParseValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":    "user-1",
		"iss":    testIssuer,
		"scopes": []string{ScopeScoreRead, ScopeScoreWrite},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	claims, err := Parse(token, Config{Secret: testSecret, Issuer: testIssuer})
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.True(t, claims.HasScope(ScopeScoreRead))
	require.True(t, claims.HasScope(ScopeScoreWrite))
	require.False(t, claims.HasScope("admin"))
}

func TestParseSpaceSeparatedScopes(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":    "user-2",
		"iss":    testIssuer,
		"scopes": "gamification:read gamification:write",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	claims, err := Parse(token, Config{Secret: testSecret, Issuer: testIssuer})
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeScoreWrite))
}

func TestParseRejectsMissingSubject(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"iss": testIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := Parse(token, Config{Secret: testSecret, Issuer: testIssuer})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "user-3",
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := Parse(token, Config{Secret: testSecret, Issuer: testIssuer})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "user-4",
		"iss": testIssuer,
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := Parse(token, Config{Secret: testSecret, Issuer: testIssuer})
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewareSkipsHealthz(t *testing.T) {
	mw := NewMiddleware(Config{Secret: testSecret, Issuer: testIssuer})

	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	mw := NewMiddleware(Config{Secret: testSecret, Issuer: testIssuer})

	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/achievements", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareAttachesClaims(t *testing.T) {
	mw := NewMiddleware(Config{Secret: testSecret, Issuer: testIssuer})
	token := signToken(t, jwt.MapClaims{
		"sub":    "user-5",
		"iss":    testIssuer,
		"scopes": []string{ScopeScoreRead},
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	var seen *Claims
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/achievements", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "user-5", seen.Subject)
}

func TestRequireScope(t *testing.T) {
	protected := RequireScope(ScopeScoreWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allows matching scope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/score", nil)
		ctx := WithClaims(req.Context(), &Claims{
			Subject: "user-6",
			Scopes:  map[string]struct{}{ScopeScoreWrite: {}},
		})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req.WithContext(ctx))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects missing scope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/score", nil)
		ctx := WithClaims(req.Context(), &Claims{Subject: "user-6"})
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req.WithContext(ctx))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}
