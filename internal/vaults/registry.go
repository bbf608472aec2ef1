// Package vaults holds the built-in vault providers and the registry that
// builds them from vaultenv.yaml bindings.
package vaults

import (
	"context"
	"sort"
	"strings"

	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/pkg/vault"
)

// Factory creates a vault for a named binding
type Factory func(ctx context.Context, name string, cfg config.VaultConfig) (vault.Vault, error)

// Info describes a registered provider type
type Info struct {
	Type        string
	Description string
	// Params lists the provider specific keys accepted under vault:
	Params []string
}

type registration struct {
	info    Info
	factory Factory
}

// Registry manages vault creation by provider type
type Registry struct {
	entries map[string]registration
	aliases map[string]string
}

// NewRegistry creates a registry with the built-in providers
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[string]registration),
		aliases: make(map[string]string),
	}

	r.Register(Info{
		Type:        "onepassword",
		Description: "1Password items via the op CLI",
		Params:      []string{"vault", "entry", "account", "executable"},
	}, newOnePasswordFactory)
	r.Alias("1password", "onepassword")

	r.Register(Info{
		Type:        "literal",
		Description: "Static values written in vaultenv.yaml",
		Params:      []string{"values"},
	}, newLiteralFactory)

	r.Register(Info{
		Type:        "aws.secretsmanager",
		Description: "AWS Secrets Manager JSON secrets",
		Params:      []string{"vault", "entry", "region", "profile", "version_stage", "assume_role", "external_id", "endpoint"},
	}, newAWSSecretsManagerFactory)

	r.Register(Info{
		Type:        "aws.ssm",
		Description: "AWS SSM Parameter Store parameters under a path",
		Params:      []string{"vault", "entry", "region", "profile", "assume_role", "external_id", "endpoint"},
	}, newAWSSSMFactory)

	r.Register(Info{
		Type:        "gcp.secretmanager",
		Description: "Google Cloud Secret Manager JSON secrets",
		Params:      []string{"vault", "entry", "project_id", "version", "service_account_key_path"},
	}, newGCPSecretManagerFactory)

	r.Register(Info{
		Type:        "azure.keyvault",
		Description: "Azure Key Vault secrets, one per key",
		Params:      []string{"vault", "entry", "vault_url", "tenant_id", "client_id", "client_secret", "use_managed_identity", "user_assigned_identity_id"},
	}, newAzureKeyVaultFactory)

	r.Register(Info{
		Type:        "hashicorp.vault",
		Description: "HashiCorp Vault KV secrets",
		Params:      []string{"vault", "entry", "address", "token", "namespace", "kv_version"},
	}, newHashiCorpFactory)

	r.Register(Info{
		Type:        "akeyless",
		Description: "Akeyless JSON secrets",
		Params:      []string{"vault", "entry", "access_id", "access_key", "gateway_url"},
	}, newAkeylessFactory)

	r.Register(Info{
		Type:        "keychain",
		Description: "OS keychain items, one per key",
		Params:      []string{"vault", "keys"},
	}, newKeychainFactory)

	return r
}

// Register adds or replaces a provider type
func (r *Registry) Register(info Info, factory Factory) {
	r.entries[info.Type] = registration{info: info, factory: factory}
}

// Alias makes alias resolve to an already registered type
func (r *Registry) Alias(alias, providerType string) {
	r.aliases[alias] = providerType
}

func (r *Registry) lookup(providerType string) (registration, bool) {
	if target, ok := r.aliases[providerType]; ok {
		providerType = target
	}
	reg, ok := r.entries[providerType]
	return reg, ok
}

// Create builds the vault for a binding
func (r *Registry) Create(ctx context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	reg, ok := r.lookup(cfg.Type)
	if !ok {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.type",
			Value:      cfg.Type,
			Message:    "unknown vault type",
			Suggestion: "Supported types: " + strings.Join(r.SupportedTypes(), ", "),
		}
	}
	return reg.factory(ctx, name, cfg)
}

// SupportedTypes returns the registered types in sorted order, aliases excluded
func (r *Registry) SupportedTypes() []string {
	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsSupported reports whether providerType or its alias is registered
func (r *Registry) IsSupported(providerType string) bool {
	_, ok := r.lookup(providerType)
	return ok
}

// Describe returns the registration info for a type
func (r *Registry) Describe(providerType string) (Info, bool) {
	reg, ok := r.lookup(providerType)
	return reg.info, ok
}

// Aliases returns alias -> type
func (r *Registry) Aliases() map[string]string {
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

func newOnePasswordFactory(_ context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	return NewOnePasswordVault(name, cfg)
}

func newLiteralFactory(_ context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	return NewLiteralVault(name, cfg.StringMap("values")), nil
}

func newAWSSecretsManagerFactory(ctx context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	return NewAWSSecretsManagerVault(ctx, name, cfg)
}

func newAWSSSMFactory(ctx context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	return NewAWSSSMVault(ctx, name, cfg)
}

func newGCPSecretManagerFactory(ctx context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	return NewGCPSecretManagerVault(ctx, name, cfg)
}

func newAzureKeyVaultFactory(_ context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	return NewAzureKeyVaultVault(name, cfg)
}

func newHashiCorpFactory(_ context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	return NewHashiCorpVault(name, cfg)
}

func newAkeylessFactory(_ context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	return NewAkeylessVault(name, cfg)
}

func newKeychainFactory(_ context.Context, name string, cfg config.VaultConfig) (vault.Vault, error) {
	return NewKeychainVault(name, cfg)
}
