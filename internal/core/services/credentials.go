package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/infrastructure/store"
)

// CredentialFile maps device base names to salt$hash entries. The JSON file
// is the source of truth; the store hash is a pushed copy.
type CredentialFile map[string]string

func LoadCredentialFile(path string) (CredentialFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CredentialFile{}, nil
		}
		return nil, err
	}
	var creds CredentialFile
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("credentials file %s: %w", path, err)
	}
	return creds, nil
}

func SaveCredentialFile(path string, creds CredentialFile) error {
	raw, err := json.MarshalIndent(creds, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// PushCredentials replaces the store's credential hash with the file
// contents, so removed devices lose access on the next push.
func PushCredentials(ctx context.Context, st ports.Store, keys store.Keys, creds CredentialFile) error {
	if err := st.Del(ctx, keys.Credentials()); err != nil {
		return err
	}
	if len(creds) == 0 {
		return nil
	}
	return st.HSet(ctx, keys.Credentials(), creds)
}
