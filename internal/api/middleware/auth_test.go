package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskdesk/riskdesk/internal/api/middleware"
	"github.com/riskdesk/riskdesk/internal/auth"
)

func okHandler() http.Handler {
	return statusHandler(http.StatusOK)
}

func createTestJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "riskdesk",
		Audience:   "riskdesk-api",
	})
}

func mintToken(t *testing.T, svc *auth.JWTService, scopes ...string) string {
	t.Helper()
	token, _, err := svc.GenerateAccessToken("ops-oncall", scopes)
	require.NoError(t, err)
	return token
}

// serveWithAuthorization sends GET path with the given Authorization
// header, omitted when empty.
func serveWithAuthorization(h http.Handler, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth_Rejects(t *testing.T) {
	handler := middleware.Auth(createTestJWTService())(okHandler())

	tests := []struct {
		name   string
		header string
		detail string
	}{
		{"no header", "", "missing authorization header"},
		{"no scheme", "token123", "invalid authorization header format"},
		{"basic auth", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"bare scheme", "Bearer", "invalid authorization header format"},
		{"empty token", "Bearer    ", "missing bearer token"},
		{"garbage token", "Bearer invalid.jwt.token", "invalid access token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithAuthorization(handler, "/v1/ops/status", tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Equal(t, `Bearer realm="riskdesk"`, rec.Header().Get("WWW-Authenticate"))
			assert.Contains(t, rec.Body.String(), tt.detail)
		})
	}
}

func TestAuth_ValidToken(t *testing.T) {
	jwtService := createTestJWTService()
	token := mintToken(t, jwtService, auth.ScopeOpsRead)

	var claims *auth.JWTClaims
	var subject string
	handler := middleware.Auth(jwtService, auth.ScopeOpsRead)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		claims = middleware.GetClaims(r.Context())
		subject = middleware.GetSubject(r.Context())
	}))

	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		claims, subject = nil, ""
		rec := serveWithAuthorization(handler, "/v1/ops/status", scheme+" "+token)

		assert.Equal(t, http.StatusOK, rec.Code, scheme)
		assert.Equal(t, "ops-oncall", subject)
		require.NotNil(t, claims)
		assert.True(t, claims.HasScope(auth.ScopeOpsRead))
	}
}

func TestAuth_MissingScope(t *testing.T) {
	jwtService := createTestJWTService()
	handler := middleware.Auth(jwtService, auth.ScopeSettingsWrite)(okHandler())

	rec := serveWithAuthorization(handler, "/v1/admin/settings", "Bearer "+mintToken(t, jwtService, auth.ScopeOpsRead))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
	assert.Contains(t, rec.Body.String(), "missing scope settings:write")
}

func TestRequireScope(t *testing.T) {
	jwtService := createTestJWTService()
	bearer := "Bearer " + mintToken(t, jwtService, auth.ScopeQuotesRead)

	tests := []struct {
		name  string
		scope string
		want  int
	}{
		{"granted", auth.ScopeQuotesRead, http.StatusOK},
		{"missing", auth.ScopeSettingsWrite, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.Auth(jwtService)(middleware.RequireScope(tt.scope)(okHandler()))
			assert.Equal(t, tt.want, serveWithAuthorization(handler, "/v1/admin/quotes", bearer).Code)
		})
	}
}

func TestRequireScope_WithoutAuth(t *testing.T) {
	handler := middleware.RequireScope(auth.ScopeOpsRead)(okHandler())
	assert.Equal(t, http.StatusUnauthorized, serveWithAuthorization(handler, "/v1/admin/settings", "").Code)
}

func TestGetSubject_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	assert.Empty(t, middleware.GetSubject(req.Context()))
	assert.Nil(t, middleware.GetClaims(req.Context()))
}
