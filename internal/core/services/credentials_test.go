package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device-credentials.json")

	creds := CredentialFile{
		"sdr1": "abcdef$" + HashPassword("abcdef", "hunter2"),
		"sdr2": "ghijkl$" + HashPassword("ghijkl", "letmein"),
	}
	require.NoError(t, SaveCredentialFile(path, creds))

	loaded, err := LoadCredentialFile(path)
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)
}

func TestLoadCredentialFileMissing(t *testing.T) {
	loaded, err := LoadCredentialFile(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestPushCredentialsReplaces(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	require.NoError(t, PushCredentials(ctx, env.store, env.keys, CredentialFile{
		"sdr1": "a$b",
		"sdr2": "c$d",
	}))

	// A second push without sdr2 must revoke it.
	require.NoError(t, PushCredentials(ctx, env.store, env.keys, CredentialFile{
		"sdr1": "a$b",
	}))

	_, found, err := env.store.HGet(ctx, env.keys.Credentials(), "sdr1")
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = env.store.HGet(ctx, env.keys.Credentials(), "sdr2")
	require.NoError(t, err)
	assert.False(t, found)
}
