// Package vault defines the contract between vaultenv and the secret stores
// it reads configuration values from.
//
// A vault is anything that can answer the question "which of these keys do
// you hold, and what are their values?". 1Password items, AWS Secrets Manager
// JSON secrets, SSM parameter trees, Azure Key Vaults and HashiCorp Vault KV
// paths all fit this shape once an entry has been selected in configuration.
//
// # Key semantics
//
// Keys are env-style labels such as FRAMEIO_TOKEN. Callers pass the keys they
// are missing and providers return the subset they hold, keyed by the spelling
// the caller asked for. Partial results are normal and are not an error.
//
// A nil or empty key slice asks for every value in the entry. The sync
// command relies on this to materialize a whole entry into an env file.
//
// # Error Handling
//
// Providers return NotFoundError when the configured entry itself does not
// exist and AuthError when credentials are missing or rejected. A key that is
// absent from an existing entry is not an error.
//
// # Security Considerations
//
// Providers must never log secret values. Use logging.Secret when a value
// or a sensitive identifier has to appear in debug output.
package vault

import (
	"context"
	"strings"
)

// Vault is a source of secret configuration values.
//
// Example usage:
//
//	v, err := registry.Create("frameio", cfg)
//	if err != nil {
//	    return err
//	}
//	values, err := v.Values(ctx, []string{"FRAMEIO_TOKEN"})
//	if err != nil {
//	    return fmt.Errorf("failed to read vault: %w", err)
//	}
type Vault interface {
	// Name returns the configured name of this vault binding, used in logs
	// and error messages.
	Name() string

	// Values returns the values held for the requested keys. Keys the vault
	// does not hold are omitted from the result. A nil or empty keys slice
	// returns every value in the entry.
	Values(ctx context.Context, keys []string) (map[string]string, error)
}

// Validator is implemented by vaults that can check their configuration and
// authentication without reading any secret values.
type Validator interface {
	Validate(ctx context.Context) error
}

// Pick selects the requested keys from a full entry.
//
// Matching is case-insensitive and results are keyed by the requested
// spelling. With no keys, a copy of all is returned.
func Pick(all map[string]string, keys []string) map[string]string {
	if len(keys) == 0 {
		out := make(map[string]string, len(all))
		for k, v := range all {
			out[k] = v
		}
		return out
	}

	folded := make(map[string]string, len(all))
	for k, v := range all {
		folded[strings.ToUpper(k)] = v
	}

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, ok := all[key]; ok {
			out[key] = v
			continue
		}
		if v, ok := folded[strings.ToUpper(key)]; ok {
			out[key] = v
		}
	}
	return out
}

// Func adapts a plain function to the Vault interface.
type Func struct {
	VaultName string
	Fn        func(ctx context.Context, keys []string) (map[string]string, error)
}

// Name returns the configured name.
func (f Func) Name() string { return f.VaultName }

// Values calls the wrapped function.
func (f Func) Values(ctx context.Context, keys []string) (map[string]string, error) {
	return f.Fn(ctx, keys)
}
