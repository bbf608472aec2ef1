package vaults_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/internal/vaults"
	"github.com/systmms/vaultenv/pkg/vault"
	"github.com/systmms/vaultenv/tests/fakes"
)

func newAkeylessFake() *fakes.FakeAkeylessClient {
	client := fakes.NewFakeAkeylessClient()
	client.NotFoundErr = vaults.ErrAkeylessSecretNotFound
	return client
}

func newAkeyless(t *testing.T, client *fakes.FakeAkeylessClient) *vaults.AkeylessVault {
	t.Helper()

	v, err := vaults.NewAkeylessVault("frameio", config.VaultConfig{
		Type:  "akeyless",
		Vault: "prod",
		Entry: "frameio",
	}, vaults.WithAkeylessClient(client))
	require.NoError(t, err)
	return v
}

func TestAkeylessVaultContract(t *testing.T) {
	vault.RunContractTests(t, vault.ContractTest{
		Fixture: map[string]string{"FRAMEIO_TOKEN": "tok"},
		CreateVault: func(t *testing.T) vault.Vault {
			client := newAkeylessFake()
			client.SetSecret("/prod/frameio", `{"FRAMEIO_TOKEN":"tok"}`)
			return newAkeyless(t, client)
		},
	})
}

func TestAkeylessVault_UsesToken(t *testing.T) {
	t.Parallel()

	client := newAkeylessFake()
	client.SetSecret("/prod/frameio", `{"A":"1"}`)

	_, err := newAkeyless(t, client).Values(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, client.AuthCalls)
	assert.Equal(t, []string{"t-fake-token"}, client.SeenTokens)
}

func TestAkeylessVault_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing item", func(t *testing.T) {
		t.Parallel()
		_, err := newAkeyless(t, newAkeylessFake()).Values(context.Background(), nil)
		var notFound vault.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "/prod/frameio", notFound.Entry)
	})

	t.Run("auth rejected", func(t *testing.T) {
		t.Parallel()
		client := newAkeylessFake()
		client.AuthErr = errors.New("access denied")
		v := newAkeyless(t, client)

		_, err := v.Values(context.Background(), nil)
		var authErr vault.AuthError
		require.ErrorAs(t, err, &authErr)
		require.ErrorAs(t, v.Validate(context.Background()), &authErr)
	})

	t.Run("unauthorized read", func(t *testing.T) {
		t.Parallel()
		client := newAkeylessFake()
		client.NotFoundErr = vaults.ErrAkeylessUnauthorized
		_, err := newAkeyless(t, client).Values(context.Background(), nil)
		var authErr vault.AuthError
		require.ErrorAs(t, err, &authErr)
	})
}

func TestAkeylessVault_Credentials(t *testing.T) {
	t.Setenv("AKEYLESS_ACCESS_ID", "")
	t.Setenv("AKEYLESS_ACCESS_KEY", "")

	cfg := config.VaultConfig{Type: "akeyless", Entry: "frameio"}
	_, err := vaults.NewAkeylessVault("frameio", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_id and access_key are required")

	t.Setenv("AKEYLESS_ACCESS_ID", "p-123")
	t.Setenv("AKEYLESS_ACCESS_KEY", "key")
	v, err := vaults.NewAkeylessVault("frameio", cfg)
	require.NoError(t, err)
	assert.Equal(t, "frameio", v.Name())
}
