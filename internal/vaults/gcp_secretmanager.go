package vaults

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/pkg/vault"
)

// SecretManagerAPI is the subset of the GCP Secret Manager client used here
type SecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPSecretManagerVault reads one JSON object secret from GCP Secret Manager
type GCPSecretManagerVault struct {
	name     string
	resource string
	client   SecretManagerAPI
}

// GCPSecretManagerOption configures a GCPSecretManagerVault
type GCPSecretManagerOption func(*GCPSecretManagerVault)

// WithSecretManagerClient sets a custom Secret Manager client (for testing)
func WithSecretManagerClient(client SecretManagerAPI) GCPSecretManagerOption {
	return func(v *GCPSecretManagerVault) {
		v.client = client
	}
}

// NewGCPSecretManagerVault creates a Secret Manager vault. The project is
// project_id, then vault, then GOOGLE_CLOUD_PROJECT.
func NewGCPSecretManagerVault(ctx context.Context, name string, cfg config.VaultConfig, opts ...GCPSecretManagerOption) (*GCPSecretManagerVault, error) {
	project := cfg.String("project_id")
	if project == "" {
		project = cfg.Vault
	}
	if project == "" {
		project = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if project == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.project_id",
			Message:    "project_id is required for GCP Secret Manager",
			Suggestion: "Set project_id in the binding or the GOOGLE_CLOUD_PROJECT environment variable",
		}
	}
	if cfg.Entry == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.entry",
			Message:    "entry is required for GCP Secret Manager",
			Suggestion: "Set the secret id, e.g. 'entry: frameio-service'",
		}
	}

	version := cfg.String("version")
	if version == "" {
		version = "latest"
	}

	v := &GCPSecretManagerVault{
		name:     name,
		resource: fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, cfg.Entry, version),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.client == nil {
		var clientOpts []option.ClientOption
		if keyPath := cfg.String("service_account_key_path"); keyPath != "" {
			if strings.HasPrefix(keyPath, "~/") {
				home, err := os.UserHomeDir()
				if err != nil {
					return nil, fmt.Errorf("failed to get home directory: %w", err)
				}
				keyPath = filepath.Join(home, keyPath[2:])
			}
			clientOpts = append(clientOpts, option.WithCredentialsFile(keyPath))
		}
		client, err := secretmanager.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		v.client = client
	}

	return v, nil
}

// Name returns the binding name
func (v *GCPSecretManagerVault) Name() string {
	return v.name
}

// Values returns the members of the secret's JSON object
func (v *GCPSecretManagerVault) Values(ctx context.Context, keys []string) (map[string]string, error) {
	resp, err := v.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: v.resource})
	if err != nil {
		return nil, v.handleError(err)
	}
	if resp.GetPayload() == nil {
		return map[string]string{}, nil
	}

	all, err := decodeObject(resp.GetPayload().GetData())
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", v.resource, err)
	}
	return vault.Pick(all, keys), nil
}

// Validate reads the secret once to confirm access
func (v *GCPSecretManagerVault) Validate(ctx context.Context) error {
	_, err := v.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: v.resource})
	if err != nil {
		return v.handleError(err)
	}
	return nil
}

func (v *GCPSecretManagerVault) handleError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return vault.NotFoundError{Vault: v.name, Entry: v.resource}
	case codes.PermissionDenied, codes.Unauthenticated:
		return vault.AuthError{Vault: v.name, Message: err.Error()}
	}
	return fmt.Errorf("GCP Secret Manager error: %w", err)
}
