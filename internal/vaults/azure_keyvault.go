package vaults

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/pkg/vault"
)

// AzureSecretsAPI is what the Key Vault vault needs from a secrets client
type AzureSecretsAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	ListSecretNames(ctx context.Context) ([]string, error)
}

// azsecretsClient adds name listing to the SDK client
type azsecretsClient struct {
	*azsecrets.Client
}

func (c azsecretsClient) ListSecretNames(ctx context.Context) ([]string, error) {
	var names []string
	pager := c.NewListSecretPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, props := range page.Value {
			if props == nil || props.ID == nil {
				continue
			}
			if props.Attributes != nil && props.Attributes.Enabled != nil && !*props.Attributes.Enabled {
				continue
			}
			names = append(names, props.ID.Name())
		}
	}
	return names, nil
}

// AzureKeyVaultVault maps env keys to Key Vault secret names.
// Key Vault forbids underscores, so FOO_BAR is stored as FOO-BAR, prefixed
// with "<entry>-" when entry is set.
type AzureKeyVaultVault struct {
	name   string
	prefix string
	client AzureSecretsAPI
}

// AzureKeyVaultOption configures an AzureKeyVaultVault
type AzureKeyVaultOption func(*AzureKeyVaultVault)

// WithAzureSecretsClient sets a custom Key Vault client (for testing)
func WithAzureSecretsClient(client AzureSecretsAPI) AzureKeyVaultOption {
	return func(v *AzureKeyVaultVault) {
		v.client = client
	}
}

// NewAzureKeyVaultVault creates a Key Vault vault. vault_url wins over the
// vault name, which expands to https://<vault>.vault.azure.net/.
func NewAzureKeyVaultVault(name string, cfg config.VaultConfig, opts ...AzureKeyVaultOption) (*AzureKeyVaultVault, error) {
	vaultURL := cfg.String("vault_url")
	if vaultURL == "" && cfg.Vault != "" {
		vaultURL = fmt.Sprintf("https://%s.vault.azure.net/", cfg.Vault)
	}
	if vaultURL == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Provide the Key Vault URL (e.g., https://my-vault.vault.azure.net/) or the vault name",
		}
	}
	if u, err := url.Parse(vaultURL); err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.vault_url",
			Value:      vaultURL,
			Message:    "invalid vault_url format",
			Suggestion: "Use format: https://vault-name.vault.azure.net/",
		}
	}

	v := &AzureKeyVaultVault{name: name}
	if cfg.Entry != "" {
		v.prefix = toAzureName(cfg.Entry) + "-"
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.client == nil {
		cred, err := azureCredential(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		client, err := azsecrets.NewClient(vaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
		}
		v.client = azsecretsClient{client}
	}

	return v, nil
}

func azureCredential(cfg config.VaultConfig) (azcore.TokenCredential, error) {
	switch {
	case cfg.String("client_secret") != "":
		return azidentity.NewClientSecretCredential(cfg.String("tenant_id"), cfg.String("client_id"), cfg.String("client_secret"), nil)
	case cfg.Bool("use_managed_identity"):
		var opts *azidentity.ManagedIdentityCredentialOptions
		if id := cfg.String("user_assigned_identity_id"); id != "" {
			opts = &azidentity.ManagedIdentityCredentialOptions{ID: azidentity.ClientID(id)}
		}
		return azidentity.NewManagedIdentityCredential(opts)
	default:
		return azidentity.NewDefaultAzureCredential(nil)
	}
}

// Name returns the binding name
func (v *AzureKeyVaultVault) Name() string {
	return v.name
}

// Values reads the requested keys, or every enabled secret under the prefix
// when keys is empty
func (v *AzureKeyVaultVault) Values(ctx context.Context, keys []string) (map[string]string, error) {
	values := make(map[string]string)

	if len(keys) == 0 {
		names, err := v.client.ListSecretNames(ctx)
		if err != nil {
			return nil, v.handleError(err, "")
		}
		for _, secretName := range names {
			if !strings.HasPrefix(strings.ToLower(secretName), strings.ToLower(v.prefix)) {
				continue
			}
			key := fromAzureName(secretName[len(v.prefix):])
			value, ok, err := v.get(ctx, secretName)
			if err != nil {
				return nil, err
			}
			if ok {
				values[key] = value
			}
		}
		return values, nil
	}

	for _, key := range keys {
		value, ok, err := v.get(ctx, v.prefix+toAzureName(key))
		if err != nil {
			return nil, err
		}
		if ok {
			values[key] = value
		}
	}
	return values, nil
}

func (v *AzureKeyVaultVault) get(ctx context.Context, secretName string) (string, bool, error) {
	resp, err := v.client.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		if isAzureNotFound(err) {
			return "", false, nil
		}
		return "", false, v.handleError(err, secretName)
	}
	if resp.Value == nil {
		return "", false, nil
	}
	return *resp.Value, true, nil
}

// Validate lists secret names to confirm access
func (v *AzureKeyVaultVault) Validate(ctx context.Context) error {
	if _, err := v.client.ListSecretNames(ctx); err != nil {
		return v.handleError(err, "")
	}
	return nil
}

func (v *AzureKeyVaultVault) handleError(err error, secretName string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return vault.AuthError{Vault: v.name, Message: respErr.ErrorCode}
		case http.StatusNotFound:
			return vault.NotFoundError{Vault: v.name, Entry: secretName}
		}
	}
	var authErr *azidentity.AuthenticationFailedError
	if errors.As(err, &authErr) {
		return vault.AuthError{Vault: v.name, Message: err.Error()}
	}
	return fmt.Errorf("Azure Key Vault error: %w", err)
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func toAzureName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func fromAzureName(secretName string) string {
	return strings.ReplaceAll(secretName, "-", "_")
}
