package services

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/relia/scheduler/internal/core/ports"
	"github.com/relia/scheduler/internal/domain"
	"github.com/relia/scheduler/internal/infrastructure/logger"
	"github.com/relia/scheduler/internal/infrastructure/store"
)

// VaultService verifies device credentials against the salt$hash entries in
// the credential hash, and the backend shared secret against configuration.
// It is read-only: authentication failures are not task-scoped events and
// never reach the error log.
type VaultService struct {
	store        ports.Store
	keys         store.Keys
	backendToken string
	logger       *logger.Logger
}

type VaultServiceConfig struct {
	Store        ports.Store
	Keys         store.Keys
	BackendToken string
	Logger       *logger.Logger
}

func NewVaultService(cfg VaultServiceConfig) *VaultService {
	return &VaultService{
		store:        cfg.Store,
		keys:         cfg.Keys,
		backendToken: cfg.BackendToken,
		logger:       cfg.Logger,
	}
}

func (s *VaultService) VerifyDevice(ctx context.Context, deviceHeader, password string) (domain.DeviceIdentity, bool) {
	if deviceHeader == "" || password == "" {
		return domain.DeviceIdentity{}, false
	}

	identity, err := domain.ParseDeviceID(deviceHeader)
	if err != nil {
		return domain.DeviceIdentity{}, false
	}

	entry, found, err := s.store.HGet(ctx, s.keys.Credentials(), identity.Base)
	if err != nil {
		s.logger.Errorw("credential_lookup_failed", "device", identity.Base, "error", err)
		return domain.DeviceIdentity{}, false
	}
	if !found {
		return domain.DeviceIdentity{}, false
	}

	salt, hash, ok := strings.Cut(entry, "$")
	if !ok {
		s.logger.Warnw("credential_entry_malformed", "device", identity.Base)
		return domain.DeviceIdentity{}, false
	}
	if HashPassword(salt, password) != hash {
		return domain.DeviceIdentity{}, false
	}
	return identity, true
}

func (s *VaultService) VerifyBackend(secret string) bool {
	if secret == "" {
		return false
	}
	return secret == s.backendToken
}

// HashPassword computes the stored credential digest. The salt$sha512hex
// scheme is fixed by the credential files already provisioned on devices.
func HashPassword(salt, password string) string {
	sum := sha512.Sum512([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

const saltLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewSalt returns a six-letter random salt for a new credential entry.
func NewSalt() (string, error) {
	out := make([]byte, 6)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(saltLetters))))
		if err != nil {
			return "", err
		}
		out[i] = saltLetters[n.Int64()]
	}
	return string(out), nil
}
