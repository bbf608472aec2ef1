package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/internal/envsync"
	"github.com/systmms/vaultenv/internal/vaults"
	"github.com/systmms/vaultenv/pkg/vault"
	"github.com/systmms/vaultenv/tests/fakes"
	"github.com/systmms/vaultenv/tests/testutil"
)

func TestDoctorCommand_AllHealthy(t *testing.T) {
	t.Parallel()

	configPath := testutil.NewTestConfig(t).
		WithLiteral("defaults", map[string]string{"PORT": "8080"}).
		Write()

	stdout, _, err := executeCommand(t, NewDoctorCommand(newTestConfig(t, configPath)))
	require.NoError(t, err)
	assert.Contains(t, stdout, "BINDING")
	assert.Contains(t, stdout, "defaults")
	assert.Contains(t, stdout, "- skipped")
	assert.Contains(t, stdout, "Summary: 1/1 bindings healthy")
}

func TestDoctorCommand_UnhealthyBinding(t *testing.T) {
	t.Parallel()

	configPath := testutil.NewTestConfig(t).
		WithLiteral("defaults", map[string]string{"PORT": "8080"}).
		WithBinding("frameio", config.VaultConfig{
			Type:   "onepassword",
			Vault:  "Engineering",
			Entry:  "frameio-service",
			Params: map[string]interface{}{"executable": "vaultenv-test-op-does-not-exist"},
		}).
		Write()

	stdout, _, err := executeCommand(t, NewDoctorCommand(newTestConfig(t, configPath)), "--verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not healthy")
	assert.Contains(t, stdout, "✗ error")
	assert.Contains(t, stdout, "1Password CLI executable was not found")
	assert.Contains(t, stdout, "Install 1Password CLI")
	assert.Contains(t, stdout, "Summary: 1/2 bindings healthy")
}

func TestDoctorCommand_InvalidConfig(t *testing.T) {
	t.Parallel()

	configPath := testutil.WriteTestConfig(t, "version: 0\nbindings:\n  frameio:\n    vault:\n      type: lastpass\n")

	_, _, err := executeCommand(t, NewDoctorCommand(newTestConfig(t, configPath)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vault type")
}

func TestCheckBindings(t *testing.T) {
	t.Parallel()

	bindings := []envsync.Binding{
		{Name: "ok", Type: "fake", Vault: fakes.NewFakeVault("ok")},
		{Name: "auth", Type: "onepassword", Vault: fakes.NewFakeVault("auth").
			WithValidateError(vault.AuthError{Vault: "auth", Message: "You are not currently signed in"})},
		{Name: "slow", Type: "fake", Timeout: 10 * time.Millisecond, Vault: blockingValidator{}},
		{Name: "literal", Type: "literal", Vault: vaults.NewLiteralVault("literal", nil)},
	}

	results := checkBindings(context.Background(), bindings)
	require.Len(t, results, 4)

	assert.Equal(t, statusHealthy, results[0].Status)

	assert.Equal(t, statusError, results[1].Status)
	assert.Equal(t, "authentication failed for auth: You are not currently signed in", results[1].Message)
	assert.Contains(t, results[1].Suggestion, "op signin")

	assert.Equal(t, statusError, results[2].Status)
	assert.Contains(t, results[2].Message, context.DeadlineExceeded.Error())

	assert.Equal(t, statusSkipped, results[3].Status)
}

type blockingValidator struct{}

func (blockingValidator) Name() string { return "slow" }

func (blockingValidator) Values(ctx context.Context, _ []string) (map[string]string, error) {
	return nil, errors.New("not used")
}

func (blockingValidator) Validate(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
