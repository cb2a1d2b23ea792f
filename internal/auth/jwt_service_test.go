package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateSessionToken(42, "a@example.com", "Alice")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "Alice", claims.Name)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(SessionTokenExpiry), claims.ExpiresAt.Time, time.Minute)
}

func TestJWTService_RejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("one").GenerateSessionToken(1, "a@example.com", "A")
	require.NoError(t, err)

	_, err = NewJWTService("two").ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret")
	svc.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }

	token, err := svc.GenerateSessionToken(1, "a@example.com", "A")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTService("test-secret").ValidateToken(signed)
	assert.Error(t, err)
}

func TestJWTService_UniqueTokenIDs(t *testing.T) {
	svc := NewJWTService("test-secret")
	a, _ := svc.GenerateSessionToken(1, "a@example.com", "A")
	b, _ := svc.GenerateSessionToken(1, "a@example.com", "A")

	ca, err := svc.ValidateToken(a)
	require.NoError(t, err)
	cb, err := svc.ValidateToken(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}
