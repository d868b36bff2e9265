package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(subject string) Claims {
	return Claims{
		Roles: []string{"analyst"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "assessment-backend",
			Audience:  jwt.ClaimStrings{"assessment-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newValidator(t *testing.T) *JWTValidator {
	t.Helper()
	v, err := NewJWTValidator(JWTConfig{
		SecretKey: "test-secret",
		Issuer:    "assessment-backend",
		Audience:  []string{"assessment-api"},
	})
	require.NoError(t, err)
	return v
}

func TestValidateToken(t *testing.T) {
	v := newValidator(t)

	claims, err := v.ValidateToken("Bearer " + signToken(t, "test-secret", validClaims("actor-7")))
	require.NoError(t, err)
	assert.Equal(t, "actor-7", claims.ActorID())
	assert.Equal(t, []string{"analyst"}, claims.Roles)
}

func TestValidateTokenFailures(t *testing.T) {
	v := newValidator(t)

	expired := validClaims("actor-7")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongAudience := validClaims("actor-7")
	wrongAudience.Audience = jwt.ClaimStrings{"other"}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"missing", "", ErrMissingToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"expired", signToken(t, "test-secret", expired), ErrExpiredToken},
		{"wrong key", signToken(t, "other-secret", validClaims("actor-7")), ErrInvalidSignature},
		{"wrong audience", signToken(t, "test-secret", wrongAudience), ErrInvalidClaims},
		{"no subject", signToken(t, "test-secret", validClaims("")), ErrInvalidClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewJWTValidatorRequiresKey(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
	assert.Error(t, err)
	_, err = NewJWTValidator(JWTConfig{SigningMethod: "ES512", SecretKey: "x"})
	assert.Error(t, err)
}

func TestKeyedLimiter(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewKeyedLimiter(2)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "actor-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "actor-1")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "actor-2")
	assert.True(t, ok, "buckets are per key")

	now = now.Add(30 * time.Second)
	ok, _ = l.Allow(ctx, "actor-1")
	assert.True(t, ok, "one token refills every 30s")

	require.NoError(t, l.Reset(ctx, "actor-2"))
	assert.Equal(t, 1, l.Size())

	now = now.Add(time.Hour)
	_, _ = l.Allow(ctx, "actor-3")
	assert.Equal(t, 1, l.Size(), "idle buckets are swept")
}
