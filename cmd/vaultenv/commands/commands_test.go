package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/internal/logging"
)

// executeCommand runs cmd with args and returns what it wrote to stdout and stderr
func executeCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func newTestConfig(t *testing.T, path string) *config.Config {
	t.Helper()
	require.NotEmpty(t, path)
	return &config.Config{
		Path:   path,
		Logger: logging.New(false, true),
	}
}
