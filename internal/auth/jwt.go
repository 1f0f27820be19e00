// Package auth issues and validates bearer tokens for operators and internal
// services calling the ops and admin routes.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token policy
//
// Tokens are short-lived HS256 JWTs carrying a subject (an operator or a
// service name) and a list of scopes. There are no refresh tokens: operators
// mint a new token with `api issue-token` when the old one expires.

// AccessTokenExpiry is the default token lifetime.
const AccessTokenExpiry = 1 * time.Hour

// Scopes understood by the API.
const (
	ScopeOpsRead       = "ops:read"
	ScopeSettingsWrite = "settings:write"
	ScopeQuotesRead    = "quotes:read"
)

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrInsufficientScope  = errors.New("insufficient scope")
)

// JWTClaims are the registered claims plus the granted scopes.
type JWTClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scp,omitempty"`
}

// HasScope reports whether the claims grant scope.
func (c *JWTClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// JWTConfig configures a JWTService. Issuer and Audience are both written
// into issued tokens and required on validation.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	// Expiry defaults to AccessTokenExpiry.
	Expiry time.Duration
}

// JWTService signs and verifies HS256 access tokens with a shared key.
type JWTService struct {
	key    []byte
	cfg    JWTConfig
	parser *jwt.Parser
}

// clockSkew is tolerated on exp and nbf between the API and token minters.
const clockSkew = 30 * time.Second

func NewJWTService(cfg JWTConfig) *JWTService {
	if cfg.Expiry <= 0 {
		cfg.Expiry = AccessTokenExpiry
	}
	return &JWTService{
		key: []byte(cfg.SigningKey),
		cfg: cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

// GenerateAccessToken signs a token for subject carrying scopes and returns
// it with its expiry.
func (s *JWTService) GenerateAccessToken(subject string, scopes []string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}

	now := time.Now()
	expiresAt := now.Add(s.cfg.Expiry)
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.cfg.Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scopes: scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken verifies signature, issuer, audience and lifetime.
// Expired tokens yield ErrAccessTokenExpired; every other failure wraps
// ErrInvalidAccessToken.
func (s *JWTService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	var claims JWTClaims
	_, err := s.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrAccessTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: no subject", ErrInvalidAccessToken)
	}
	return &claims, nil
}
