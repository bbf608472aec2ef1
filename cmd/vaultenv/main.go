package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/systmms/vaultenv/cmd/vaultenv/commands"
	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	memguard.CatchInterrupt()

	cfg := &config.Config{}
	err := run(cfg)
	memguard.Purge()
	if cfg.Logger != nil {
		cfg.Logger.Sync()
	}
	if err != nil {
		if cfg.Logger != nil && cfg.Logger.IsDebug() {
			fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", vverrors.SimplifyError(err))
		}
		os.Exit(commands.ExitCode(err))
	}
}

func run(cfg *config.Config) error {
	var (
		configFile     string
		noColor        bool
		debug          bool
		nonInteractive bool
	)

	rootCmd := &cobra.Command{
		Use:   "vaultenv",
		Short: "Sync vault secrets into your .env file",
		Long: `vaultenv pulls values from your vault(s) and keeps them in a managed
block of a .env file. Content outside the block is left alone.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.NonInteractive = nonInteractive
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Non-interactive mode")

	rootCmd.AddCommand(
		commands.NewSyncCommand(cfg),
		commands.NewInitCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewProvidersCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
