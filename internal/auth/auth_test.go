package auth_test

import (
	"testing"
	"time"

	"carelink/backend/internal/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)

	raw, err := tokens.Sign("user-1", "a@example.com")
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "carelink-service", claims.Issuer)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	good, err := tokens.Sign("user-1", "a@example.com")
	require.NoError(t, err)

	otherKey, err := auth.NewTokens("other", time.Hour).Sign("user-1", "a@example.com")
	require.NoError(t, err)

	expired, err := auth.NewTokens("secret", time.Nanosecond).Sign("user-1", "a@example.com")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":         "",
		"garbage":       "not.a.token",
		"wrong secret":  otherKey,
		"expired":       expired,
		"alg none":      noneAlg,
		"truncated sig": good[:len(good)-4],
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(raw)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestPassword(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, auth.CheckPassword(hash, "hunter22"))
	assert.False(t, auth.CheckPassword(hash, "hunter23"))
	assert.False(t, auth.CheckPassword("not-a-hash", "hunter22"))
}
