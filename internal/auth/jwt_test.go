package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskdesk/riskdesk/internal/auth"
)

const testKey = "test-secret-key-for-testing-only"

func newTestJWTService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newTestJWTService(testKey, "riskdesk", "riskdesk-api")

	token, expiresAt, err := svc.GenerateAccessToken("ops-oncall", []string{auth.ScopeOpsRead, auth.ScopeQuotesRead})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.WithinDuration(t, time.Now().Add(auth.AccessTokenExpiry), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-oncall", claims.Subject)
	assert.Equal(t, "riskdesk", claims.Issuer)
	assert.True(t, claims.HasScope(auth.ScopeOpsRead))
	assert.True(t, claims.HasScope(auth.ScopeQuotesRead))
	assert.False(t, claims.HasScope(auth.ScopeSettingsWrite))
}

func TestJWTService_CustomExpiry(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{
		SigningKey: testKey,
		Issuer:     "riskdesk",
		Audience:   "riskdesk-api",
		Expiry:     10 * time.Minute,
	})

	_, expiresAt, err := svc.GenerateAccessToken("batch-worker", nil)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)
}

func TestJWTService_RequiresSubject(t *testing.T) {
	svc := newTestJWTService(testKey, "riskdesk", "riskdesk-api")

	_, _, err := svc.GenerateAccessToken("", []string{auth.ScopeOpsRead})
	assert.Error(t, err)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newTestJWTService(testKey, "riskdesk", "riskdesk-api")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	svc := newTestJWTService(testKey, "riskdesk", "riskdesk-api")

	past := time.Now().Add(-2 * time.Hour)
	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "riskdesk",
			Subject:   "ops-oncall",
			Audience:  jwt.ClaimStrings{"riskdesk-api"},
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	svc := newTestJWTService(testKey, "riskdesk", "riskdesk-api")

	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "riskdesk",
			Subject:   "ops-oncall",
			Audience:  jwt.ClaimStrings{"riskdesk-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_RejectsForeignTokens(t *testing.T) {
	verifier := newTestJWTService(testKey, "riskdesk", "riskdesk-api")

	tests := []struct {
		name   string
		issuer *auth.JWTService
	}{
		{"other signing key", newTestJWTService("another-key", "riskdesk", "riskdesk-api")},
		{"other issuer", newTestJWTService(testKey, "claims-portal", "riskdesk-api")},
		{"other audience", newTestJWTService(testKey, "riskdesk", "claims-portal-api")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := tt.issuer.GenerateAccessToken("ops-oncall", []string{auth.ScopeOpsRead})
			require.NoError(t, err)

			_, err = verifier.ValidateAccessToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_ToleratesClockSkew(t *testing.T) {
	svc := newTestJWTService(testKey, "riskdesk", "riskdesk-api")

	// Minted by a host whose clock runs ten seconds ahead.
	ahead := time.Now().Add(10 * time.Second)
	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "riskdesk",
			Subject:   "batch-worker",
			Audience:  jwt.ClaimStrings{"riskdesk-api"},
			IssuedAt:  jwt.NewNumericDate(ahead),
			NotBefore: jwt.NewNumericDate(ahead),
			ExpiresAt: jwt.NewNumericDate(ahead.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	require.NoError(t, err)

	got, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "batch-worker", got.Subject)
}

func TestJWTService_UniqueTokenIDs(t *testing.T) {
	svc := newTestJWTService(testKey, "riskdesk", "riskdesk-api")

	first, _, err := svc.GenerateAccessToken("ops-oncall", nil)
	require.NoError(t, err)
	second, _, err := svc.GenerateAccessToken("ops-oncall", nil)
	require.NoError(t, err)

	a, err := svc.ValidateAccessToken(first)
	require.NoError(t, err)
	b, err := svc.ValidateAccessToken(second)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}
