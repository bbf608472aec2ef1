package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/internal/envsync"
	"github.com/systmms/vaultenv/internal/metrics"
	"github.com/systmms/vaultenv/internal/vaults"
)

func NewSyncCommand(cfg *config.Config) *cobra.Command {
	var (
		envFile     string
		projectRoot string
		allowErrors bool
		check       bool
		permissions string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Write vault values into the managed block of an env file",
		Long: `Pull every binding in vaultenv.yaml and write the merged values between
the vaultenv markers of the env file. Lines outside the managed block are
kept as they are.

Bindings run in name order and later bindings win on duplicate keys.
Bindings that share a provider configuration are queried once.

Examples:
  vaultenv sync
  vaultenv sync --env-file .env.local
  vaultenv sync --project-root ./services/api --allow-errors
  vaultenv sync --check   # exit 2 when the env file is out of date`,
		RunE: func(cmd *cobra.Command, args []string) error {
			perms, err := parsePermissions(permissions)
			if err != nil {
				return err
			}

			ctx := context.Background()
			bindings, err := loadBindings(ctx, cfg, vaults.NewRegistry())
			if err != nil {
				return err
			}
			if len(bindings) == 0 {
				cfg.Logger.Warn("No bindings configured in %s", cfg.Path)
			}

			m := metrics.New()
			syncer := envsync.New(cfg.Logger, m)

			result, syncErr := syncer.Sync(ctx, bindings, envsync.Options{
				EnvFile:     envFile,
				ProjectRoot: projectRoot,
				AllowErrors: allowErrors,
				Check:       check,
				Permissions: perms,
			})

			if metricsFile != "" {
				if err := m.WriteTextfile(metricsFile); err != nil {
					cfg.Logger.Warn("Failed to write metrics: %v", err)
				}
			}

			if warning := result.Warning(); warning != "" {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), warning)
			}

			if check {
				if errors.Is(syncErr, envsync.ErrOutOfDate) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is out of date: %s\n", result.EnvFile, strings.Join(result.Drift, ", "))
					return syncErr
				}
				if syncErr != nil {
					return syncErr
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is up to date.\n", result.EnvFile)
				return nil
			}

			if syncErr != nil {
				return syncErr
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", envsync.DefaultEnvFile, "Env file to update, relative to --project-root")
	cmd.Flags().StringVar(&projectRoot, "project-root", ".", "Project root for relative env file paths")
	cmd.Flags().BoolVar(&allowErrors, "allow-errors", false, "Skip failing bindings instead of aborting")
	cmd.Flags().BoolVar(&check, "check", false, "Report drift without writing the file")
	cmd.Flags().StringVar(&permissions, "permissions", "0600", "Permissions for a newly created env file, in octal")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this path")

	return cmd
}
