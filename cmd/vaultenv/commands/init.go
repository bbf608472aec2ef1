package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/systmms/vaultenv/internal/config"
)

const exampleConfig = `version: 0

# Each binding names a vault whose values 'vaultenv sync' writes into the
# managed block of your .env file. Bindings run in name order; later
# bindings win on duplicate keys.
bindings:
  frameio:
    timeout_ms: 10000
    vault:
      type: onepassword
      vault: Engineering
      entry: frameio-service
      # account: myteam.1password.com

  # Non-secret defaults can live here as literals
  defaults:
    vault:
      type: literal
      values:
        LOG_LEVEL: info

  # aws:
  #   vault:
  #     type: aws.secretsmanager
  #     entry: prod/frameio
  #     region: us-east-1

  # gcp:
  #   vault:
  #     type: gcp.secretmanager
  #     entry: frameio
  #     project_id: my-project

  # azure:
  #   vault:
  #     type: azure.keyvault
  #     vault: my-keyvault

  # hashicorp:
  #   vault:
  #     type: hashicorp.vault
  #     vault: secret
  #     entry: frameio
`

func NewInitCommand(cfg *config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new vaultenv configuration",
		Long:  "Create a vaultenv.yaml file with example bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.Path
			if path == "" {
				path = config.DefaultPath
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists. Use --force to overwrite it", path)
			}

			if _, err := config.Parse([]byte(exampleConfig)); err != nil {
				return fmt.Errorf("example configuration is invalid: %w", err)
			}

			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			cfg.Logger.Info("Created %s with example bindings", path)
			cfg.Logger.Info("Next steps:")
			cfg.Logger.Info("  1. Edit %s to point at your vaults", path)
			cfg.Logger.Info("  2. Run 'vaultenv doctor' to verify vault access")
			cfg.Logger.Info("  3. Run 'vaultenv sync' to write your .env file")

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")

	return cmd
}
