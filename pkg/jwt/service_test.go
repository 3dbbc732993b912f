package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc, err := NewService("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := svc.GenerateToken("user-1", "ada@example.com", "Ada")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "Ada", claims.FirstName)

	other, err := NewService("other-secret", time.Hour)
	require.NoError(t, err)
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unverified, err := ParseUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", unverified.Email)
}

func TestExpiredToken(t *testing.T) {
	svc, err := NewService("test-secret", time.Minute)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.GenerateToken("user-1", "", "")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService("", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)

	_, err = ParseUnverified("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
