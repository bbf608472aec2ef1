package vaults

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/systmms/vaultenv/internal/config"
	"github.com/systmms/vaultenv/pkg/vault"
)

const defaultAWSRegion = "us-east-1"

// STSAPI is the subset of the STS client used to check AWS credentials
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// awsSettings holds the connection parameters shared by the AWS vaults
type awsSettings struct {
	Region          string
	Profile         string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	AssumeRole      string
	ExternalID      string
}

func awsSettingsFrom(cfg config.VaultConfig) awsSettings {
	return awsSettings{
		Region:          cfg.String("region"),
		Profile:         cfg.String("profile"),
		Endpoint:        cfg.String("endpoint"),
		AccessKeyID:     cfg.String("access_key_id"),
		SecretAccessKey: cfg.String("secret_access_key"),
		AssumeRole:      cfg.String("assume_role"),
		ExternalID:      cfg.String("external_id"),
	}
}

// loadAWSConfig builds an aws.Config from the binding settings.
// With assume_role set, the base credentials are exchanged through STS.
func loadAWSConfig(ctx context.Context, s awsSettings) (aws.Config, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(s.Region))
	}
	if s.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(s.Profile))
	}
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = defaultAWSRegion
	}

	if s.AssumeRole != "" {
		stsClient := sts.NewFromConfig(cfg)
		provider := stscreds.NewAssumeRoleProvider(stsClient, s.AssumeRole, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "vaultenv"
			if s.ExternalID != "" {
				o.ExternalID = aws.String(s.ExternalID)
			}
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}

// checkAWSIdentity confirms the credentials are accepted by AWS
func checkAWSIdentity(ctx context.Context, name string, client STSAPI) error {
	if _, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return vault.AuthError{Vault: name, Message: err.Error()}
	}
	return nil
}

var awsAuthErrorCodes = map[string]bool{
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
	"ExpiredTokenException":       true,
	"InvalidClientTokenId":        true,
	"UnauthorizedOperation":       true,
	"InvalidSignatureException":   true,
}

func isAWSAuthError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return awsAuthErrorCodes[apiErr.ErrorCode()]
	}
	return false
}
