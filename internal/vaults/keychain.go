package vaults

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
)

// ErrKeychainItemNotFound matches the message the CLI suggestions key on
var ErrKeychainItemNotFound = errors.New("keychain item not found")

// KeyringAPI reads one item from the OS keychain
type KeyringAPI interface {
	Get(service, account string) (string, error)
}

type systemKeyring struct{}

func (systemKeyring) Get(service, account string) (string, error) {
	return keyring.Get(service, account)
}

// KeychainVault reads items from the macOS Keychain, the Linux Secret
// Service or the Windows Credential Manager. The service is vault and each
// env key is an account. A full sync reads the accounts listed in keys.
type KeychainVault struct {
	name     string
	service  string
	accounts []string
	keyring  KeyringAPI
}

// KeychainOption configures a KeychainVault
type KeychainOption func(*KeychainVault)

// WithKeyring sets a custom keyring (for testing)
func WithKeyring(k KeyringAPI) KeychainOption {
	return func(v *KeychainVault) {
		v.keyring = k
	}
}

// NewKeychainVault creates an OS keychain vault
func NewKeychainVault(name string, cfg config.VaultConfig, opts ...KeychainOption) (*KeychainVault, error) {
	if cfg.Vault == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.vault",
			Message:    "vault is required for the keychain",
			Suggestion: "Set the keychain service name, e.g. 'vault: frameio'",
		}
	}

	v := &KeychainVault{
		name:     name,
		service:  cfg.Vault,
		accounts: cfg.Strings("keys"),
		keyring:  systemKeyring{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Name returns the binding name
func (v *KeychainVault) Name() string {
	return v.name
}

// Values reads one keychain item per key
func (v *KeychainVault) Values(ctx context.Context, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		keys = v.accounts
	}

	values := make(map[string]string, len(keys))
	for _, account := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		secret, err := v.keyring.Get(v.service, account)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("keychain read of %s/%s failed: %w", v.service, account, err)
		}
		values[account] = secret
	}
	return values, nil
}

// Validate checks that every listed account exists
func (v *KeychainVault) Validate(ctx context.Context) error {
	for _, account := range v.accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := v.keyring.Get(v.service, account); err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return fmt.Errorf("%w: %s/%s", ErrKeychainItemNotFound, v.service, account)
			}
			return fmt.Errorf("keychain read of %s/%s failed: %w", v.service, account, err)
		}
	}
	return nil
}
