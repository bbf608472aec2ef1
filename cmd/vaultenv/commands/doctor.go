package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/internal/envsync"
	"github.com/systmms/vaultenv/internal/vaults"
	"github.com/systmms/vaultenv/pkg/vault"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check vault connectivity and configuration",
		Long: `Verify that every binding in vaultenv.yaml is usable.

This command checks:
- Configuration file validity
- Provider configuration for each binding
- Vault CLI presence and authentication, without reading secret values`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking vaultenv configuration...")
			ctx := context.Background()

			bindings, err := loadBindings(ctx, cfg, vaults.NewRegistry())
			if err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			cfg.Logger.Info("Configuration loaded successfully")

			results := checkBindings(ctx, bindings)
			displayHealthResults(cmd.OutOrStdout(), results, verbose)

			healthy := 0
			for _, result := range results {
				if result.Status != statusError {
					healthy++
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %d/%d bindings healthy\n", healthy, len(results))
			if healthy < len(results) {
				return fmt.Errorf("some bindings are not healthy")
			}

			cfg.Logger.Info("All systems operational!")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failing bindings")

	return cmd
}

const (
	statusHealthy = "healthy"
	statusSkipped = "skipped"
	statusError   = "error"
)

// BindingHealth represents the health status of one binding
type BindingHealth struct {
	Name       string
	Type       string
	Status     string
	Message    string
	Suggestion string
	Duration   time.Duration
}

func checkBindings(ctx context.Context, bindings []envsync.Binding) []BindingHealth {
	results := make([]BindingHealth, 0, len(bindings))

	for _, b := range bindings {
		health := BindingHealth{Name: b.Name, Type: b.Type}

		validator, ok := b.Vault.(vault.Validator)
		if !ok {
			health.Status = statusSkipped
			health.Message = "Nothing to check"
			results = append(results, health)
			continue
		}

		timeout := b.Timeout
		if timeout <= 0 {
			timeout = config.DefaultTimeout
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		err := validator.Validate(callCtx)
		health.Duration = time.Since(start)
		cancel()

		if err != nil {
			health.Status = statusError
			health.Message = firstLine(err.Error())
			if userErr, ok := vverrors.ProviderError(b.Type, "validate", err).(vverrors.UserError); ok {
				health.Suggestion = userErr.Suggestion
			}
		} else {
			health.Status = statusHealthy
			health.Message = "Vault is ready"
		}
		results = append(results, health)
	}
	return results
}

// displayHealthResults shows binding health in a formatted table
func displayHealthResults(out io.Writer, results []BindingHealth, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "BINDING\tTYPE\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-------\t----\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case statusHealthy:
			status = "✓ " + status
		case statusError:
			status = "✗ " + status
		default:
			status = "- " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", result.Name, result.Type, status, result.Message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, result := range results {
		if result.Status == statusError && result.Suggestion != "" {
			_, _ = fmt.Fprintf(out, "\n%s (%s):\n  • %s\n", result.Name, result.Type, result.Suggestion)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
