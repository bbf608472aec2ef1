package vaults

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/pkg/vault"
)

// KVReader reads one KV secret. *api.KVv1 and *api.KVv2 both satisfy it.
type KVReader interface {
	Get(ctx context.Context, secretPath string) (*api.KVSecret, error)
}

// HashiCorpVault reads one KV secret from HashiCorp Vault. vault is the KV
// mount (default "secret") and entry the path inside it.
type HashiCorpVault struct {
	name   string
	mount  string
	path   string
	kv     KVReader
	client *api.Client
}

// HashiCorpOption configures a HashiCorpVault
type HashiCorpOption func(*HashiCorpVault)

// WithKVReader sets a custom KV reader (for testing)
func WithKVReader(kv KVReader) HashiCorpOption {
	return func(v *HashiCorpVault) {
		v.kv = kv
	}
}

// NewHashiCorpVault creates a HashiCorp Vault KV vault. Address and token
// default to VAULT_ADDR and VAULT_TOKEN.
func NewHashiCorpVault(name string, cfg config.VaultConfig, opts ...HashiCorpOption) (*HashiCorpVault, error) {
	if cfg.Entry == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.entry",
			Message:    "entry is required for HashiCorp Vault",
			Suggestion: "Set the secret path inside the mount, e.g. 'entry: apps/frameio'",
		}
	}

	mount := strings.Trim(cfg.Vault, "/")
	if mount == "" {
		mount = "secret"
	}
	v := &HashiCorpVault{
		name:  name,
		mount: mount,
		path:  strings.Trim(cfg.Entry, "/"),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.kv != nil {
		return v, nil
	}

	apiCfg := api.DefaultConfig()
	if apiCfg.Error != nil {
		return nil, fmt.Errorf("failed to read Vault environment: %w", apiCfg.Error)
	}
	if addr := cfg.String("address"); addr != "" {
		apiCfg.Address = addr
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token := cfg.String("token"); token != "" {
		client.SetToken(token)
	}
	if ns := cfg.String("namespace"); ns != "" {
		client.SetNamespace(ns)
	}

	v.client = client
	if cfg.Int("kv_version", 2) == 1 {
		v.kv = client.KVv1(mount)
	} else {
		v.kv = client.KVv2(mount)
	}
	return v, nil
}

// Name returns the binding name
func (v *HashiCorpVault) Name() string {
	return v.name
}

// Values returns the data of the KV secret
func (v *HashiCorpVault) Values(ctx context.Context, keys []string) (map[string]string, error) {
	secret, err := v.kv.Get(ctx, v.path)
	if err != nil {
		return nil, v.handleError(err)
	}
	if secret == nil {
		return nil, vault.NotFoundError{Vault: v.name, Entry: v.mount + "/" + v.path}
	}

	all := make(map[string]string, len(secret.Data))
	for k, val := range secret.Data {
		if val == nil {
			continue
		}
		all[k] = stringify(val)
	}
	return vault.Pick(all, keys), nil
}

// Validate looks up the client token, or reads the secret when no client is held
func (v *HashiCorpVault) Validate(ctx context.Context) error {
	if v.client == nil {
		_, err := v.kv.Get(ctx, v.path)
		if err != nil {
			return v.handleError(err)
		}
		return nil
	}
	if _, err := v.client.Auth().Token().LookupSelfWithContext(ctx); err != nil {
		return vault.AuthError{Vault: v.name, Message: err.Error()}
	}
	return nil
}

func (v *HashiCorpVault) handleError(err error) error {
	if errors.Is(err, api.ErrSecretNotFound) {
		return vault.NotFoundError{Vault: v.name, Entry: v.mount + "/" + v.path}
	}
	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return vault.NotFoundError{Vault: v.name, Entry: v.mount + "/" + v.path}
		case http.StatusForbidden, http.StatusUnauthorized:
			return vault.AuthError{Vault: v.name, Message: strings.Join(respErr.Errors, ", ")}
		}
	}
	return fmt.Errorf("HashiCorp Vault error: %w", err)
}
