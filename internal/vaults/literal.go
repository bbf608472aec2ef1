package vaults

import (
	"context"

	"github.com/systmms/vaultenv/pkg/vault"
)

// LiteralVault serves values written inline in vaultenv.yaml
type LiteralVault struct {
	name   string
	values map[string]string
}

// NewLiteralVault creates a literal vault
func NewLiteralVault(name string, values map[string]string) *LiteralVault {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &LiteralVault{name: name, values: copied}
}

// Name returns the binding name
func (l *LiteralVault) Name() string {
	return l.name
}

// Values returns the requested literal values
func (l *LiteralVault) Values(_ context.Context, keys []string) (map[string]string, error) {
	return vault.Pick(l.values, keys), nil
}
