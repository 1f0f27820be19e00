package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/riskdesk/riskdesk/internal/api/models"
	"github.com/riskdesk/riskdesk/internal/auth"
)

// claimsKey is the context key for the validated token claims.
type claimsKey struct{}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.JWTClaims, error)
}

// Auth admits requests carrying a valid bearer token and stores its claims
// in the context. When scopes are given the token must carry every one.
func Auth(validator TokenValidator, scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r.Header.Get("Authorization"))
			if problem != "" {
				writeUnauthorized(w, r, problem)
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			switch {
			case errors.Is(err, auth.ErrAccessTokenExpired):
				writeUnauthorized(w, r, "access token has expired")
				return
			case errors.Is(err, auth.ErrInvalidAccessToken):
				writeUnauthorized(w, r, "invalid access token")
				return
			case err != nil:
				writeUnauthorized(w, r, "authentication failed")
				return
			}

			if scope, ok := missingScope(claims, scopes); !ok {
				writeForbidden(w, r, scope)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// name is matched case-insensitively. A non-empty second result describes
// why the header was rejected.
func bearerToken(header string) (string, string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", "invalid authorization header format"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

// RequireScope rejects requests whose claims, set by an outer Auth, lack
// any of scopes. Requests without claims are unauthorized.
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				writeUnauthorized(w, r, "authentication required")
				return
			}
			if scope, ok := missingScope(claims, scopes); !ok {
				writeForbidden(w, r, scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func missingScope(claims *auth.JWTClaims, scopes []string) (string, bool) {
	for _, scope := range scopes {
		if !claims.HasScope(scope) {
			return scope, false
		}
	}
	return "", true
}

func writeForbidden(w http.ResponseWriter, r *http.Request, scope string) {
	problem := models.NewForbidden(GetRequestID(r.Context()), "missing scope "+scope)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// writeUnauthorized lives here rather than in package response, which
// imports this package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="riskdesk"`)
	problem := models.NewUnauthorized(GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetSubject returns the authenticated principal, or "" when the request
// was not authenticated.
func GetSubject(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}

// GetClaims returns the validated token claims, if any.
func GetClaims(ctx context.Context) *auth.JWTClaims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.JWTClaims)
	return claims
}
