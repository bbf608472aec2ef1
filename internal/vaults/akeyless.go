package vaults

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	akeyless "github.com/akeylesslabs/akeyless-go/v3"

	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/pkg/vault"
)

const defaultAkeylessGateway = "https://api.akeyless.io"

// ErrAkeylessSecretNotFound is returned by AkeylessAPI when the path holds no secret
var ErrAkeylessSecretNotFound = errors.New("akeyless secret not found")

// ErrAkeylessUnauthorized is returned by AkeylessAPI when credentials are rejected
var ErrAkeylessUnauthorized = errors.New("akeyless credentials rejected")

// AkeylessAPI is what the Akeyless vault needs from the gateway
type AkeylessAPI interface {
	Authenticate(ctx context.Context) (string, error)
	GetSecretValue(ctx context.Context, token, path string) (string, error)
}

// akeylessSDKClient implements AkeylessAPI with API key authentication
type akeylessSDKClient struct {
	api       *akeyless.APIClient
	accessID  string
	accessKey string
}

func newAkeylessSDKClient(gatewayURL, accessID, accessKey string) *akeylessSDKClient {
	configuration := akeyless.NewConfiguration()
	configuration.Servers = []akeyless.ServerConfiguration{{URL: gatewayURL}}
	return &akeylessSDKClient{
		api:       akeyless.NewAPIClient(configuration),
		accessID:  accessID,
		accessKey: accessKey,
	}
}

func (c *akeylessSDKClient) Authenticate(ctx context.Context) (string, error) {
	authBody := akeyless.NewAuthWithDefaults()
	authBody.SetAccessId(c.accessID)
	authBody.SetAccessKey(c.accessKey)

	authRes, httpResp, err := c.api.V2Api.Auth(ctx).Body(*authBody).Execute()
	if err != nil {
		return "", akeylessError(httpResp, err)
	}
	return authRes.GetToken(), nil
}

func (c *akeylessSDKClient) GetSecretValue(ctx context.Context, token, path string) (string, error) {
	body := akeyless.NewGetSecretValue([]string{path})
	body.SetToken(token)

	res, httpResp, err := c.api.V2Api.GetSecretValue(ctx).Body(*body).Execute()
	if err != nil {
		return "", akeylessError(httpResp, err)
	}
	value, ok := res[path]
	if !ok {
		return "", ErrAkeylessSecretNotFound
	}
	return stringify(value), nil
}

func akeylessError(resp *http.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrAkeylessSecretNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAkeylessUnauthorized, err)
		}
	}
	return err
}

// AkeylessVault reads one JSON object secret from Akeyless at /<vault>/<entry>
type AkeylessVault struct {
	name   string
	path   string
	client AkeylessAPI
}

// AkeylessOption configures an AkeylessVault
type AkeylessOption func(*AkeylessVault)

// WithAkeylessClient sets a custom Akeyless client (for testing)
func WithAkeylessClient(client AkeylessAPI) AkeylessOption {
	return func(v *AkeylessVault) {
		v.client = client
	}
}

// NewAkeylessVault creates an Akeyless vault. Credentials default to
// AKEYLESS_ACCESS_ID and AKEYLESS_ACCESS_KEY.
func NewAkeylessVault(name string, cfg config.VaultConfig, opts ...AkeylessOption) (*AkeylessVault, error) {
	if cfg.Entry == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.entry",
			Message:    "entry is required for Akeyless",
			Suggestion: "Set the secret name, e.g. 'entry: frameio-service'",
		}
	}

	v := &AkeylessVault{
		name: name,
		path: "/" + joinPath(cfg.Vault, cfg.Entry),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.client != nil {
		return v, nil
	}

	accessID := firstNonEmpty(cfg.String("access_id"), os.Getenv("AKEYLESS_ACCESS_ID"))
	accessKey := firstNonEmpty(cfg.String("access_key"), os.Getenv("AKEYLESS_ACCESS_KEY"))
	if accessID == "" || accessKey == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.access_id",
			Message:    "access_id and access_key are required for Akeyless",
			Suggestion: "Set them in the binding or export AKEYLESS_ACCESS_ID and AKEYLESS_ACCESS_KEY",
		}
	}
	gateway := firstNonEmpty(cfg.String("gateway_url"), defaultAkeylessGateway)

	v.client = newAkeylessSDKClient(gateway, accessID, accessKey)
	return v, nil
}

// Name returns the binding name
func (v *AkeylessVault) Name() string {
	return v.name
}

// Values returns the members of the secret's JSON object
func (v *AkeylessVault) Values(ctx context.Context, keys []string) (map[string]string, error) {
	token, err := v.client.Authenticate(ctx)
	if err != nil {
		return nil, vault.AuthError{Vault: v.name, Message: err.Error()}
	}

	raw, err := v.client.GetSecretValue(ctx, token, v.path)
	if err != nil {
		return nil, v.handleError(err)
	}

	all, err := decodeObject([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", v.path, err)
	}
	return vault.Pick(all, keys), nil
}

// Validate authenticates against the gateway
func (v *AkeylessVault) Validate(ctx context.Context) error {
	if _, err := v.client.Authenticate(ctx); err != nil {
		return vault.AuthError{Vault: v.name, Message: err.Error()}
	}
	return nil
}

func (v *AkeylessVault) handleError(err error) error {
	switch {
	case errors.Is(err, ErrAkeylessSecretNotFound):
		return vault.NotFoundError{Vault: v.name, Entry: v.path}
	case errors.Is(err, ErrAkeylessUnauthorized):
		return vault.AuthError{Vault: v.name, Message: err.Error()}
	}
	return fmt.Errorf("Akeyless error: %w", err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
