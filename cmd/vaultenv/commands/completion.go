package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/vaultenv/internal/config"
)

// NewCompletionCommand creates the completion command for generating shell completions.
func NewCompletionCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for vaultenv.

To load completions:

Bash:
  $ source <(vaultenv completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ vaultenv completion bash > /etc/bash_completion.d/vaultenv
  # macOS:
  $ vaultenv completion bash > $(brew --prefix)/etc/bash_completion.d/vaultenv

Zsh:
  $ vaultenv completion zsh > "${fpath[1]}/_vaultenv"

Fish:
  $ vaultenv completion fish > ~/.config/fish/completions/vaultenv.fish

PowerShell:
  PS> vaultenv completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}
