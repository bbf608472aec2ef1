package envsync

import (
	"context"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/internal/vaults"
	"github.com/systmms/vaultenv/pkg/vault"
)

// Creator builds a vault for a binding. *vaults.Registry satisfies it.
type Creator interface {
	Create(ctx context.Context, name string, cfg config.VaultConfig) (vault.Vault, error)
}

var _ Creator = (*vaults.Registry)(nil)

// BindingsFromConfig builds one Binding per configured binding, in name order
func BindingsFromConfig(ctx context.Context, cfg *config.Config, creator Creator) ([]Binding, error) {
	names := cfg.BindingNames()
	bindings := make([]Binding, 0, len(names))

	for _, name := range names {
		b, err := cfg.GetBinding(name)
		if err != nil {
			return nil, err
		}
		v, err := creator.Create(ctx, name, b.Vault)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, Binding{
			Name:     name,
			Type:     b.Vault.Type,
			Identity: b.Vault.Identity(),
			Timeout:  b.Timeout(),
			Vault:    v,
		})
	}
	return bindings, nil
}
