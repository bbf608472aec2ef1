package commands

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/internal/vaults"
)

func NewProvidersCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List available vault types",
		Long: `Display the vault types a binding can use.

When a vaultenv.yaml is present, the configured bindings are listed too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := vaults.NewRegistry()
			out := cmd.OutOrStdout()

			_, _ = fmt.Fprintln(out, "Built-in Vault Types:")
			_, _ = fmt.Fprintln(out, "=====================")

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "TYPE\tDESCRIPTION\n")
			_, _ = fmt.Fprintf(w, "----\t-----------\n")
			for _, providerType := range registry.SupportedTypes() {
				info, _ := registry.Describe(providerType)
				_, _ = fmt.Fprintf(w, "%s\t%s\n", providerType, info.Description)
			}
			_ = w.Flush()

			if aliases := registry.Aliases(); len(aliases) > 0 {
				names := make([]string, 0, len(aliases))
				for alias := range aliases {
					names = append(names, alias)
				}
				sort.Strings(names)

				_, _ = fmt.Fprintln(out, "\nAliases:")
				for _, alias := range names {
					_, _ = fmt.Fprintf(out, "  %s -> %s\n", alias, aliases[alias])
				}
			}

			if cfg.Path != "" {
				if err := cfg.Load(); err == nil {
					_, _ = fmt.Fprintln(out, "\nConfigured Bindings:")
					_, _ = fmt.Fprintln(out, "====================")

					names := cfg.BindingNames()
					if len(names) == 0 {
						_, _ = fmt.Fprintln(out, "No bindings configured")
					} else {
						w2 := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
						_, _ = fmt.Fprintf(w2, "NAME\tTYPE\tSTATUS\n")
						_, _ = fmt.Fprintf(w2, "----\t----\t------\n")
						for _, name := range names {
							b, _ := cfg.GetBinding(name)
							status := "configured"
							if !registry.IsSupported(b.Vault.Type) {
								status = "unsupported"
							}
							_, _ = fmt.Fprintf(w2, "%s\t%s\t%s\n", name, b.Vault.Type, status)
						}
						_ = w2.Flush()
					}
				} else {
					cfg.Logger.Debug("Skipping configured bindings: %v", err)
				}
			}

			if verbose {
				_, _ = fmt.Fprintln(out, "\nVault Parameters:")
				_, _ = fmt.Fprintln(out, "=================")
				for _, providerType := range registry.SupportedTypes() {
					info, _ := registry.Describe(providerType)
					_, _ = fmt.Fprintf(out, "\n%s:\n  • %s\n", providerType, strings.Join(info.Params, ", "))
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show the parameters each vault type accepts")

	return cmd
}
