package vaults_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/internal/vaults"
	"github.com/systmms/vaultenv/pkg/vault"
	"github.com/systmms/vaultenv/tests/testutil"
)

const opItemGet = "op item get frameio-service --vault Engineering --format json"

var opResponses testutil.OnePasswordMockResponses

func newOnePassword(t *testing.T, mock *testutil.MockCommandExecutor, params map[string]interface{}) *vaults.OnePasswordVault {
	t.Helper()

	v, err := vaults.NewOnePasswordVault("frameio", config.VaultConfig{
		Type:   "onepassword",
		Vault:  "Engineering",
		Entry:  "frameio-service",
		Params: params,
	}, vaults.WithCommandExecutor(mock))
	require.NoError(t, err)
	return v
}

func TestOnePasswordVaultContract(t *testing.T) {
	fixture := map[string]string{
		"FRAMEIO_TOKEN":  "fio-u-123",
		"FRAMEIO_SECRET": "s3cr3t",
	}

	vault.RunContractTests(t, vault.ContractTest{
		Fixture: fixture,
		CreateVault: func(t *testing.T) vault.Vault {
			mock := testutil.NewMockCommandExecutor()
			mock.AddResponse(opItemGet, opResponses.Item("abc123", "frameio-service",
				testutil.OnePasswordField{Label: "FRAMEIO_TOKEN", Value: "fio-u-123"},
				testutil.OnePasswordField{Label: "FRAMEIO_SECRET", Value: "s3cr3t"},
			))
			return newOnePassword(t, mock, nil)
		},
	})
}

func TestOnePasswordVault_RequiresVaultAndEntry(t *testing.T) {
	t.Parallel()

	_, err := vaults.NewOnePasswordVault("frameio", config.VaultConfig{Type: "onepassword", Entry: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault is required")

	_, err = vaults.NewOnePasswordVault("frameio", config.VaultConfig{Type: "onepassword", Vault: "Eng"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry is required")
}

func TestOnePasswordVault_CommandLine(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockCommandExecutor()
	mock.DefaultResponse = &testutil.MockResponse{Stdout: opResponses.Item("abc", "t").Stdout}

	v := newOnePassword(t, mock, map[string]interface{}{
		"account":    "my.1password.com",
		"executable": "/opt/bin/op",
	})
	_, err := v.Values(context.Background(), nil)
	require.NoError(t, err)

	calls := mock.GetCalls("/opt/bin/op")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{
		"item", "get", "frameio-service",
		"--vault", "Engineering",
		"--format", "json",
		"--account", "my.1password.com",
	}, calls[0].Args)
}

func TestOnePasswordVault_FieldHandling(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockCommandExecutor()
	mock.AddResponse(opItemGet, opResponses.Item("abc", "frameio-service",
		testutil.OnePasswordField{Label: "FRAMEIO_TOKEN", Value: "tok"},
		testutil.OnePasswordField{Label: "", Value: "unlabelled"},
		testutil.OnePasswordField{Label: "notesPlain", Type: "STRING", Value: nil},
		testutil.OnePasswordField{Label: "PORT", Type: "STRING", Value: 8080},
		testutil.OnePasswordField{Label: "FLAGS", Type: "STRING", Value: []string{"a", "b"}},
	))

	values, err := newOnePassword(t, mock, nil).Values(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"FRAMEIO_TOKEN": "tok",
		"PORT":          "8080",
		"FLAGS":         `["a","b"]`,
	}, values)
}

func TestOnePasswordVault_RequestedKeysFoldCase(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockCommandExecutor()
	mock.AddResponse(opItemGet, opResponses.Item("abc", "frameio-service",
		testutil.OnePasswordField{Label: "frameio_token", Value: "tok"},
	))

	values, err := newOnePassword(t, mock, nil).Values(context.Background(), []string{"FRAMEIO_TOKEN", "OTHER"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FRAMEIO_TOKEN": "tok"}, values)
}

func TestOnePasswordVault_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response testutil.MockResponse
		notFound bool
		wantIs   error
		wantMsg  string
	}{
		{
			name:     "not signed in",
			response: opResponses.NotSignedIn(),
			wantMsg:  "Failed to read item from 1Password: [ERROR] 2024/01/15 10:30:00 You are not currently signed in",
		},
		{
			name:     "empty stderr",
			response: testutil.MockResponse{Err: errors.New("exit status 1")},
			wantMsg:  "Failed to read item from 1Password: unknown error",
		},
		{
			name:     "missing executable",
			notFound: true,
			wantIs:   vaults.ErrOnePasswordNotInstalled,
		},
		{
			name:     "invalid json",
			response: testutil.MockResponse{Stdout: []byte("not json")},
			wantIs:   vaults.ErrOnePasswordInvalidJSON,
		},
		{
			name:     "missing fields",
			response: testutil.MockResponse{Stdout: []byte(`{"id":"abc","title":"t"}`)},
			wantIs:   vaults.ErrOnePasswordSchema,
		},
		{
			name:     "field without type",
			response: testutil.MockResponse{Stdout: []byte(`{"id":"abc","title":"t","fields":[{"label":"A","value":"b"}]}`)},
			wantIs:   vaults.ErrOnePasswordSchema,
		},
		{
			name:     "json array",
			response: testutil.MockResponse{Stdout: []byte(`[1,2]`)},
			wantIs:   vaults.ErrOnePasswordSchema,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := testutil.NewMockCommandExecutor()
			if tt.notFound {
				mock.AddNotFoundResponse("op")
			} else {
				mock.AddResponse(opItemGet, tt.response)
			}

			_, err := newOnePassword(t, mock, nil).Values(context.Background(), []string{"A"})
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
				var readErr *vaults.OnePasswordReadError
				assert.ErrorAs(t, err, &readErr)
			}
		})
	}
}

func TestOnePasswordVault_ContextDeadline(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockCommandExecutor()
	mock.AddResponse(opItemGet, testutil.MockResponse{Block: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newOnePassword(t, mock, nil).Values(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOnePasswordVault_Validate(t *testing.T) {
	t.Parallel()

	t.Run("signed in", func(t *testing.T) {
		t.Parallel()
		mock := testutil.NewMockCommandExecutor()
		mock.AddResponse("op account get", opResponses.AccountGet())

		require.NoError(t, newOnePassword(t, mock, nil).Validate(context.Background()))
		mock.AssertCallCount(t, "op", 1)
	})

	t.Run("not signed in", func(t *testing.T) {
		t.Parallel()
		mock := testutil.NewMockCommandExecutor()
		mock.AddResponse("op account get", opResponses.NotSignedIn())

		err := newOnePassword(t, mock, nil).Validate(context.Background())
		var authErr vault.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "frameio", authErr.Vault)
		assert.Contains(t, authErr.Message, "not currently signed in")
	})

	t.Run("not installed", func(t *testing.T) {
		t.Parallel()
		mock := testutil.NewMockCommandExecutor()
		mock.AddNotFoundResponse("op")

		err := newOnePassword(t, mock, nil).Validate(context.Background())
		assert.ErrorIs(t, err, vaults.ErrOnePasswordNotInstalled)
	})
}
