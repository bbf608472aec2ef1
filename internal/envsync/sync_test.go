package envsync_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/internal/envfile"
	"github.com/systmms/vaultenv/internal/envsync"
	"github.com/systmms/vaultenv/internal/metrics"
	"github.com/systmms/vaultenv/internal/vaults"
	"github.com/systmms/vaultenv/pkg/vault"
	"github.com/systmms/vaultenv/tests/fakes"
	"github.com/systmms/vaultenv/tests/testutil"
)

func binding(name string, v vault.Vault) envsync.Binding {
	return envsync.Binding{
		Name:     name,
		Type:     "literal",
		Identity: "id:" + name,
		Timeout:  time.Second,
		Vault:    v,
	}
}

func TestSync_WritesManagedBlock(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	syncer := envsync.New(nil, nil)

	result, err := syncer.Sync(context.Background(), []envsync.Binding{
		binding("frameio", fakes.NewFakeVault("frameio").WithValues(map[string]string{
			"FRAMEIO_TOKEN": "tok",
			"GREETING":      "hello world",
		})),
	}, envsync.Options{ProjectRoot: project.Root})
	require.NoError(t, err)

	assert.Equal(t, project.Path(".env"), result.EnvFile)
	assert.Equal(t, 1, result.Bindings)
	assert.Equal(t, 1, result.ProvidersQueried)
	assert.Equal(t, 2, result.VariablesWritten)
	assert.True(t, result.Changed)
	assert.Empty(t, result.Warning())
	assert.Equal(t, "Wrote 2 variable(s) from 1 provider(s) across 1 binding(s) to "+project.Path(".env")+".", result.Summary())

	testutil.AssertFileContents(t, project.Path(".env"), envfile.StartMarker+"\n"+
		"FRAMEIO_TOKEN=tok\n"+
		`GREETING="hello world"`+"\n"+
		envfile.EndMarker+"\n")

	info, err := os.Stat(project.Path(".env"))
	require.NoError(t, err)
	assert.Equal(t, envsync.DefaultPermissions, info.Mode().Perm())
}

func TestSync_PreservesOtherContentAndIsIdempotent(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	project.WriteEnvFile(".env", "# local overrides\nDEBUG=1\n\n"+
		envfile.StartMarker+"\nOLD=value\n"+envfile.EndMarker+"\n\nTAIL=kept\n")

	bindings := []envsync.Binding{
		binding("frameio", fakes.NewFakeVault("frameio").WithValue("FRAMEIO_TOKEN", "tok")),
	}
	syncer := envsync.New(nil, nil)

	first, err := syncer.Sync(context.Background(), bindings, envsync.Options{ProjectRoot: project.Root})
	require.NoError(t, err)
	assert.True(t, first.Changed)

	want := "# local overrides\nDEBUG=1\n\nTAIL=kept\n\n" +
		envfile.StartMarker + "\nFRAMEIO_TOKEN=tok\n" + envfile.EndMarker + "\n"
	testutil.AssertFileContents(t, project.Path(".env"), want)

	second, err := syncer.Sync(context.Background(), bindings, envsync.Options{ProjectRoot: project.Root})
	require.NoError(t, err)
	assert.False(t, second.Changed)
	testutil.AssertFileContents(t, project.Path(".env"), want)
}

func TestSync_LaterBindingsOverride(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	alpha := fakes.NewFakeVault("alpha").WithValues(map[string]string{"SHARED": "alpha", "A": "1"})
	beta := fakes.NewFakeVault("beta").WithValues(map[string]string{"SHARED": "beta", "B": "2"})

	// Input order is reversed; bindings run in name order
	_, err := envsync.New(nil, nil).Sync(context.Background(), []envsync.Binding{
		binding("beta", beta),
		binding("alpha", alpha),
	}, envsync.Options{ProjectRoot: project.Root})
	require.NoError(t, err)

	testutil.AssertManagedValues(t, project.Path(".env"), map[string]string{
		"A":      "1",
		"B":      "2",
		"SHARED": "beta",
	})
	assert.Equal(t, [][]string{nil}, alpha.Calls())
}

func TestSync_DedupesProvidersByIdentity(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	first := fakes.NewFakeVault("one").WithValue("A", "1")
	second := fakes.NewFakeVault("two").WithValue("A", "2")

	b1 := binding("one", first)
	b2 := binding("two", second)
	b2.Identity = b1.Identity

	result, err := envsync.New(nil, nil).Sync(context.Background(), []envsync.Binding{b1, b2}, envsync.Options{ProjectRoot: project.Root})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Bindings)
	assert.Equal(t, 1, result.ProvidersQueried)
	assert.Equal(t, 1, first.CallCount())
	assert.Equal(t, 0, second.CallCount())
	testutil.AssertManagedValues(t, project.Path(".env"), map[string]string{"A": "1"})
}

func TestSync_ProviderErrorAborts(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	failing := binding("frameio", fakes.NewFakeVault("frameio").
		WithError(vault.AuthError{Vault: "frameio", Message: "You are not currently signed in"}))
	failing.Type = "onepassword"

	_, err := envsync.New(nil, nil).Sync(context.Background(), []envsync.Binding{
		binding("static", fakes.NewFakeVault("static").WithValue("A", "1")),
		failing,
	}, envsync.Options{ProjectRoot: project.Root})
	require.Error(t, err)

	var authErr vault.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "binding frameio")
	assert.Contains(t, err.Error(), "op signin")
	assert.Contains(t, err.Error(), "Details: authentication failed for frameio")
	assert.NoFileExists(t, project.Path(".env"))
}

func TestSync_AllowErrors(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	logger := testutil.NewTestLogger(t)

	result, err := envsync.New(logger.Logger, nil).Sync(context.Background(), []envsync.Binding{
		binding("broken", fakes.NewFakeVault("broken").WithError(errors.New("connection refused"))),
		binding("static", fakes.NewFakeVault("static").WithValue("A", "1")),
	}, envsync.Options{ProjectRoot: project.Root, AllowErrors: true})
	require.NoError(t, err)

	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.ProvidersQueried)
	assert.Equal(t, "Warning: skipped 1 binding error(s).", result.Warning())
	testutil.AssertManagedValues(t, project.Path(".env"), map[string]string{"A": "1"})
	logger.AssertContains(t, "Skipping binding broken")
}

func TestSync_AllowErrorsRedactsCollectedValues(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	logger := testutil.NewTestLogger(t)

	_, err := envsync.New(logger.Logger, nil).Sync(context.Background(), []envsync.Binding{
		binding("a-static", fakes.NewFakeVault("static").WithValue("TOKEN", "fio-u-leaky-token")),
		binding("b-broken", fakes.NewFakeVault("broken").WithError(errors.New("rejected fio-u-leaky-token"))),
	}, envsync.Options{ProjectRoot: project.Root, AllowErrors: true})
	require.NoError(t, err)

	logger.AssertContains(t, "Skipping binding b-broken")
	logger.AssertRedacted(t, "fio-u-leaky-token")
}

func TestSync_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	throttled := fakes.NewFakeVault("throttled").WithError(errors.New("ThrottlingException: rate limit exceeded"))
	refused := fakes.NewFakeVault("refused").WithError(errors.New("dial tcp: connection refused"))

	_, err := envsync.New(nil, nil).Sync(context.Background(), []envsync.Binding{binding("throttled", throttled)},
		envsync.Options{ProjectRoot: project.Root})
	require.Error(t, err)
	assert.Equal(t, 2, throttled.CallCount())

	_, err = envsync.New(nil, nil).Sync(context.Background(), []envsync.Binding{binding("refused", refused)},
		envsync.Options{ProjectRoot: project.Root})
	require.Error(t, err)
	assert.Equal(t, 1, refused.CallCount())
}

func TestSync_Timeout(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	slow := binding("slow", fakes.NewFakeVault("slow").WithDelay(5*time.Second))
	slow.Type = "onepassword"
	slow.Timeout = 20 * time.Millisecond

	_, err := envsync.New(nil, nil).Sync(context.Background(), []envsync.Binding{slow}, envsync.Options{ProjectRoot: project.Root})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
	assert.Contains(t, err.Error(), "timeout_ms")
}

func TestSync_CheckMode(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	bindings := []envsync.Binding{
		binding("frameio", fakes.NewFakeVault("frameio").WithValues(map[string]string{"A": "1", "B": "2"})),
	}
	syncer := envsync.New(nil, nil)

	result, err := syncer.Sync(context.Background(), bindings, envsync.Options{ProjectRoot: project.Root, Check: true})
	require.ErrorIs(t, err, envsync.ErrOutOfDate)
	assert.True(t, result.Changed)
	assert.Equal(t, []string{"A", "B"}, result.Drift)
	assert.NoFileExists(t, project.Path(".env"))

	project.WriteEnvFile(".env", envfile.StartMarker+"\nA=1\nB=old\nC=gone\n"+envfile.EndMarker+"\n")
	result, err = syncer.Sync(context.Background(), bindings, envsync.Options{ProjectRoot: project.Root, Check: true})
	require.ErrorIs(t, err, envsync.ErrOutOfDate)
	assert.Equal(t, []string{"B", "C"}, result.Drift)

	_, err = syncer.Sync(context.Background(), bindings, envsync.Options{ProjectRoot: project.Root})
	require.NoError(t, err)

	result, err = syncer.Sync(context.Background(), bindings, envsync.Options{ProjectRoot: project.Root, Check: true})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Empty(t, result.Drift)
}

func TestSync_UnterminatedBlock(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	original := "KEEP=1\n" + envfile.StartMarker + "\nA=1\n"
	project.WriteEnvFile(".env", original)

	_, err := envsync.New(nil, nil).Sync(context.Background(), []envsync.Binding{
		binding("frameio", fakes.NewFakeVault("frameio").WithValue("A", "2")),
	}, envsync.Options{ProjectRoot: project.Root})
	require.ErrorIs(t, err, envfile.ErrUnterminatedBlock)
	assert.Contains(t, err.Error(), "Resolve manually and retry")
	testutil.AssertFileContents(t, project.Path(".env"), original)
}

func TestSync_EnvFileLocation(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	absolute := filepath.Join(t.TempDir(), "nested", "custom.env")
	v := fakes.NewFakeVault("frameio").WithValue("A", "1")

	result, err := envsync.New(nil, nil).Sync(context.Background(), []envsync.Binding{binding("frameio", v)},
		envsync.Options{ProjectRoot: project.Root, EnvFile: "config/.env.local", Permissions: 0640})
	require.NoError(t, err)
	assert.Equal(t, project.Path("config", ".env.local"), result.EnvFile)
	info, err := os.Stat(result.EnvFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())

	result, err = envsync.New(nil, nil).Sync(context.Background(), []envsync.Binding{binding("frameio", v)},
		envsync.Options{ProjectRoot: project.Root, EnvFile: absolute})
	require.NoError(t, err)
	assert.Equal(t, absolute, result.EnvFile)
	assert.FileExists(t, absolute)
}

func TestSync_SealedValuesNotLogged(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	logger := testutil.NewTestLoggerWithDebug(t, true)

	_, err := envsync.New(logger.Logger, nil).Sync(context.Background(), []envsync.Binding{
		binding("frameio", fakes.NewFakeVault("frameio").WithValue("FRAMEIO_TOKEN", "fio-u-supersecret")),
	}, envsync.Options{ProjectRoot: project.Root})
	require.NoError(t, err)

	logger.AssertContains(t, "Binding frameio returned 1 value(s)")
	testutil.AssertNoSecretLeak(t, logger.GetOutput(), []string{"fio-u-supersecret"})
}

func TestSync_RecordsMetrics(t *testing.T) {
	t.Parallel()

	project := testutil.NewProjectDir(t)
	m := metrics.New()
	syncer := envsync.New(nil, m)

	bindings := []envsync.Binding{
		binding("frameio", fakes.NewFakeVault("frameio").WithValues(map[string]string{"A": "1", "B": "2"})),
	}
	_, err := syncer.Sync(context.Background(), bindings, envsync.Options{ProjectRoot: project.Root})
	require.NoError(t, err)
	_, err = syncer.Sync(context.Background(), bindings, envsync.Options{ProjectRoot: project.Root})
	require.NoError(t, err)

	expected := `
# HELP vaultenv_sync_runs_total Total number of sync runs by result
# TYPE vaultenv_sync_runs_total counter
vaultenv_sync_runs_total{result="unchanged"} 1
vaultenv_sync_runs_total{result="written"} 1
`
	assert.NoError(t, promtestutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "vaultenv_sync_runs_total"))
	count, err := promtestutil.GatherAndCount(m.Registry(), "vaultenv_vault_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBindingsFromConfig(t *testing.T) {
	t.Parallel()

	path := testutil.NewTestConfig(t).
		WithLiteral("static", map[string]string{"PORT": "8080"}).
		WithLiteral("again", map[string]string{"PORT": "8080"}).
		WithBinding("frameio", config.VaultConfig{Type: "1password", Vault: "Engineering", Entry: "frameio-service"}).
		WithTimeout("frameio", 1500).
		Write()
	cfg := testutil.LoadTestConfig(t, path)

	bindings, err := envsync.BindingsFromConfig(context.Background(), cfg, vaults.NewRegistry())
	require.NoError(t, err)
	require.Len(t, bindings, 3)

	assert.Equal(t, "again", bindings[0].Name)
	assert.Equal(t, "frameio", bindings[1].Name)
	assert.Equal(t, "static", bindings[2].Name)
	assert.Equal(t, "1password", bindings[1].Type)
	assert.Equal(t, 1500*time.Millisecond, bindings[1].Timeout)
	assert.Equal(t, config.DefaultTimeout, bindings[2].Timeout)
	assert.Equal(t, bindings[0].Identity, bindings[2].Identity)
	assert.NotEqual(t, bindings[0].Identity, bindings[1].Identity)
}

func TestBindingsFromConfig_UnknownType(t *testing.T) {
	t.Parallel()

	path := testutil.NewTestConfig(t).
		WithBinding("frameio", config.VaultConfig{Type: "lastpass"}).
		Write()

	_, err := envsync.BindingsFromConfig(context.Background(), testutil.LoadTestConfig(t, path), vaults.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vault type")
}
