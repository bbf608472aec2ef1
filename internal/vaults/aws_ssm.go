package vaults

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/pkg/vault"
)

// SSMAPI is the subset of the SSM client used here
type SSMAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// AWSSSMVault reads the parameters directly under /<vault>/<entry> in
// SSM Parameter Store. Keys are parameter base names.
type AWSSSMVault struct {
	name     string
	path     string
	client   SSMAPI
	identity STSAPI
}

// AWSSSMOption configures an AWSSSMVault
type AWSSSMOption func(*AWSSSMVault)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client SSMAPI) AWSSSMOption {
	return func(v *AWSSSMVault) {
		v.client = client
	}
}

// WithSSMSTSClient sets the STS client used by Validate (for testing)
func WithSSMSTSClient(client STSAPI) AWSSSMOption {
	return func(v *AWSSSMVault) {
		v.identity = client
	}
}

// NewAWSSSMVault creates a Parameter Store vault
func NewAWSSSMVault(ctx context.Context, name string, cfg config.VaultConfig, opts ...AWSSSMOption) (*AWSSSMVault, error) {
	v := &AWSSSMVault{
		name: name,
		path: "/" + joinPath(cfg.Vault, cfg.Entry),
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
			var clientOpts []func(*ssm.Options)
			if settings.Endpoint != "" {
				clientOpts = append(clientOpts, func(o *ssm.Options) {
					o.BaseEndpoint = aws.String(settings.Endpoint)
				})
			}
			v.client = ssm.NewFromConfig(awsCfg, clientOpts...)
		}
		if v.identity == nil {
			v.identity = sts.NewFromConfig(awsCfg)
		}
	}

	return v, nil
}

// Name returns the binding name
func (v *AWSSSMVault) Name() string {
	return v.name
}

// Values returns the decrypted parameters under the configured path
func (v *AWSSSMVault) Values(ctx context.Context, keys []string) (map[string]string, error) {
	all := make(map[string]string)

	paginator := ssm.NewGetParametersByPathPaginator(v.client, &ssm.GetParametersByPathInput{
		Path:           aws.String(v.path),
		WithDecryption: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, v.handleError(err)
		}
		for _, param := range page.Parameters {
			if param.Name == nil || param.Value == nil {
				continue
			}
			all[path.Base(*param.Name)] = *param.Value
		}
	}

	return vault.Pick(all, keys), nil
}

// Validate checks that AWS accepts the configured credentials
func (v *AWSSSMVault) Validate(ctx context.Context) error {
	return checkAWSIdentity(ctx, v.name, v.identity)
}

func (v *AWSSSMVault) handleError(err error) error {
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return vault.NotFoundError{Vault: v.name, Entry: v.path}
	}
	if isAWSAuthError(err) {
		return vault.AuthError{Vault: v.name, Message: err.Error()}
	}
	return fmt.Errorf("AWS SSM error: %w", err)
}
