package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/internal/envsync"
	"github.com/systmms/vaultenv/internal/vaults"
)

// Exit codes returned by the vaultenv binary
const (
	ExitOK        = 0
	ExitError     = 1
	ExitOutOfDate = 2
)

// ExitCode maps a command error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, envsync.ErrOutOfDate):
		return ExitOutOfDate
	default:
		return ExitError
	}
}

// loadBindings loads vaultenv.yaml and builds a vault for every binding
func loadBindings(ctx context.Context, cfg *config.Config, registry *vaults.Registry) ([]envsync.Binding, error) {
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	bindings, err := envsync.BindingsFromConfig(ctx, cfg, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create vaults: %w", err)
	}
	return bindings, nil
}

// parsePermissions reads an octal file mode such as "0600"
func parsePermissions(s string) (os.FileMode, error) {
	var perms os.FileMode
	n, err := fmt.Sscanf(s, "%o", &perms)
	if err != nil || n != 1 || perms == 0 || perms > 0o777 {
		return 0, fmt.Errorf("invalid permissions %q, use octal like '0600'", s)
	}
	return perms, nil
}
