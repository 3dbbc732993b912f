package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"langgraph-chat/app/pkg/logger"
)

func TestVaultManagerDisabledUsesEnvironment(t *testing.T) {
	m, err := NewVaultManager(VaultConfig{Enabled: false, CacheTTL: time.Minute}, logger.Nop())
	require.NoError(t, err)

	env := map[string]string{"OPENAI_API_KEY": "sk-test"}
	m.lookup = func(k string) string { return env[k] }
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	v, err := m.GetSecret(ctx, KeyOpenAIAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", v)

	// served from cache until the ttl passes
	env["OPENAI_API_KEY"] = "sk-rotated"
	v, _ = m.GetSecret(ctx, KeyOpenAIAPIKey)
	assert.Equal(t, "sk-test", v)
	now = now.Add(2 * time.Minute)
	v, _ = m.GetSecret(ctx, KeyOpenAIAPIKey)
	assert.Equal(t, "sk-rotated", v)

	_, err = m.GetSecret(ctx, "missing.key")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, "fallback", m.GetSecretWithDefault(ctx, "missing.key", "fallback"))
}

func TestVaultManagerRequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true}, logger.Nop())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://127.0.0.1:8200"}, logger.Nop())
	assert.ErrorIs(t, err, ErrNoVaultToken)

	m, err := NewVaultManager(VaultConfig{Enabled: true, Address: "http://127.0.0.1:8200", Token: "t"}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "langgraph-chat", m.config.SecretsPath)
}

func TestStatic(t *testing.T) {
	s := Static{KeyJWTSecret: "shh"}
	v, err := s.GetSecret(context.Background(), KeyJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "shh", v)
	assert.Equal(t, "d", s.GetSecretWithDefault(context.Background(), KeyOpenAIAPIKey, "d"))
}
