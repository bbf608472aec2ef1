package vaults

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/pkg/vault"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
// This allows for mocking in tests.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerVault reads one JSON object secret from AWS Secrets Manager
type AWSSecretsManagerVault struct {
	name         string
	secretID     string
	versionStage string
	client       SecretsManagerAPI
	identity     STSAPI
}

// AWSSecretsManagerOption configures an AWSSecretsManagerVault
type AWSSecretsManagerOption func(*AWSSecretsManagerVault)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerAPI) AWSSecretsManagerOption {
	return func(v *AWSSecretsManagerVault) {
		v.client = client
	}
}

// WithSecretsManagerSTSClient sets the STS client used by Validate (for testing)
func WithSecretsManagerSTSClient(client STSAPI) AWSSecretsManagerOption {
	return func(v *AWSSecretsManagerVault) {
		v.identity = client
	}
}

// NewAWSSecretsManagerVault creates a Secrets Manager vault. The secret id is
// the entry, prefixed with "<vault>/" when vault is set.
func NewAWSSecretsManagerVault(ctx context.Context, name string, cfg config.VaultConfig, opts ...AWSSecretsManagerOption) (*AWSSecretsManagerVault, error) {
	if cfg.Entry == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.entry",
			Message:    "entry is required for AWS Secrets Manager",
			Suggestion: "Set the secret name, e.g. 'entry: frameio/service'",
		}
	}

	v := &AWSSecretsManagerVault{
		name:         name,
		secretID:     joinPath(cfg.Vault, cfg.Entry),
		versionStage: cfg.String("version_stage"),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.client == nil || v.identity == nil {
		settings := awsSettingsFrom(cfg)
		awsCfg, err := loadAWSConfig(ctx, settings)
		if err != nil {
			return nil, err
		}
		if v.client == nil {
			var clientOpts []func(*secretsmanager.Options)
			if settings.Endpoint != "" {
				clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
					o.BaseEndpoint = aws.String(settings.Endpoint)
				})
			}
			v.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
		}
		if v.identity == nil {
			v.identity = sts.NewFromConfig(awsCfg)
		}
	}

	return v, nil
}

// Name returns the binding name
func (v *AWSSecretsManagerVault) Name() string {
	return v.name
}

// Values returns the members of the secret's JSON object
func (v *AWSSecretsManagerVault) Values(ctx context.Context, keys []string) (map[string]string, error) {
	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(v.secretID)}
	if v.versionStage != "" {
		input.VersionStage = aws.String(v.versionStage)
	}

	out, err := v.client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, v.handleError(err)
	}

	var payload []byte
	switch {
	case out.SecretString != nil:
		payload = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		payload = out.SecretBinary
	default:
		return map[string]string{}, nil
	}

	all, err := decodeObject(payload)
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", v.secretID, err)
	}
	return vault.Pick(all, keys), nil
}

// Validate checks that AWS accepts the configured credentials
func (v *AWSSecretsManagerVault) Validate(ctx context.Context) error {
	return checkAWSIdentity(ctx, v.name, v.identity)
}

func (v *AWSSecretsManagerVault) handleError(err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return vault.NotFoundError{Vault: v.name, Entry: v.secretID}
	}
	if isAWSAuthError(err) {
		return vault.AuthError{Vault: v.name, Message: err.Error()}
	}
	return fmt.Errorf("AWS Secrets Manager error: %w", err)
}

// joinPath joins non-empty segments with single slashes
func joinPath(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
