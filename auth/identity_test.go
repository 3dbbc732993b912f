package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"langgraph-chat/app/pkg/jwt"
)

func TestTokenIdentity(t *testing.T) {
	svc, err := jwt.NewService("secret", time.Hour)
	require.NoError(t, err)
	token, err := svc.GenerateToken("user-1", "ada@example.com", "Ada")
	require.NoError(t, err)

	id := NewTokenIdentity(token)
	assert.True(t, id.IsLoaded())
	assert.True(t, id.IsSignedIn())

	user, ok := id.User()
	require.True(t, ok)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, []string{"ada@example.com"}, user.EmailAddresses)
	assert.Equal(t, "Ada", user.DisplayName())

	got, err := id.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, got)

	require.NoError(t, id.SignOut(context.Background()))
	assert.False(t, id.IsSignedIn())
	got, err = id.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTokenIdentityRejectsExpiredAndGarbage(t *testing.T) {
	assert.False(t, NewTokenIdentity("").IsSignedIn())
	assert.False(t, NewTokenIdentity("garbage").IsSignedIn())

	svc, err := jwt.NewService("secret", time.Minute)
	require.NoError(t, err)
	token, err := svc.GenerateToken("user-1", "", "")
	require.NoError(t, err)

	id := NewTokenIdentity(token)
	id.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.False(t, id.IsSignedIn())
}

func TestDisplayNameFallbacks(t *testing.T) {
	assert.Equal(t, "a@b.c", User{EmailAddresses: []string{"a@b.c"}}.DisplayName())
	assert.Equal(t, "there", User{}.DisplayName())
}
