package services

import (
	"context"
	"testing"

	"github.com/relia/scheduler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCredential(t *testing.T, env *testEnv, base, salt, password string) {
	t.Helper()
	err := env.store.HSet(context.Background(), env.keys.Credentials(), map[string]string{
		base: salt + "$" + HashPassword(salt, password),
	})
	require.NoError(t, err)
}

func TestVerifyDevice(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedCredential(t, env, "sdr1", "abcdef", "hunter2")

	identity, ok := env.vault.VerifyDevice(ctx, "sdr1:r", "hunter2")
	require.True(t, ok)
	assert.Equal(t, "sdr1", identity.Base)
	assert.Equal(t, domain.RoleReceiver, identity.Role)

	identity, ok = env.vault.VerifyDevice(ctx, "sdr1:t", "hunter2")
	require.True(t, ok)
	assert.Equal(t, domain.RoleTransmitter, identity.Role)
}

func TestVerifyDeviceRejections(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedCredential(t, env, "sdr1", "abcdef", "hunter2")

	cases := []struct {
		name     string
		header   string
		password string
	}{
		{"wrong password", "sdr1:r", "letmein"},
		{"empty password", "sdr1:r", ""},
		{"empty header", "", "hunter2"},
		{"no role suffix", "sdr1", "hunter2"},
		{"bad role suffix", "sdr1:x", "hunter2"},
		{"extra separator", "sdr1:r:extra", "hunter2"},
		{"empty base", ":r", "hunter2"},
		{"unknown device", "sdr9:r", "hunter2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := env.vault.VerifyDevice(ctx, tc.header, tc.password)
			assert.False(t, ok)
		})
	}
}

func TestVerifyDeviceMalformedEntry(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	err := env.store.HSet(ctx, env.keys.Credentials(), map[string]string{
		"sdr1": "no-dollar-separator",
	})
	require.NoError(t, err)

	_, ok := env.vault.VerifyDevice(ctx, "sdr1:r", "anything")
	assert.False(t, ok)
}

func TestVerifyBackend(t *testing.T) {
	env := newTestEnv()

	assert.True(t, env.vault.VerifyBackend("backend-secret"))
	assert.False(t, env.vault.VerifyBackend("wrong"))
	assert.False(t, env.vault.VerifyBackend(""))
}

func TestVerifyBackendEmptyTokenNeverMatches(t *testing.T) {
	env := newTestEnvWith(testEnvConfig{backendToken: ""})
	assert.False(t, env.vault.VerifyBackend(""))
}

func TestHashPasswordDeterministic(t *testing.T) {
	first := HashPassword("salt", "password")
	second := HashPassword("salt", "password")
	assert.Equal(t, first, second)
	assert.Len(t, first, 128) // hex-encoded sha512
	assert.NotEqual(t, first, HashPassword("other", "password"))
	assert.NotEqual(t, first, HashPassword("salt", "other"))
}

func TestNewSalt(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		salt, err := NewSalt()
		require.NoError(t, err)
		assert.Len(t, salt, 6)
		for _, r := range salt {
			assert.True(t, (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'), "unexpected rune %q", r)
		}
		seen[salt] = true
	}
	assert.Greater(t, len(seen), 1)
}
