package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// FakeSecretsManagerClient is a fake Secrets Manager client
type FakeSecretsManagerClient struct {
	// Secrets maps secret ids to their string value
	Secrets map[string]string
	// Binary maps secret ids to a binary value
	Binary map[string][]byte
	// Errors maps secret ids to errors to return
	Errors map[string]error
	// Requests records every GetSecretValue input
	Requests []*secretsmanager.GetSecretValueInput

	mu sync.Mutex
}

// NewFakeSecretsManagerClient creates an empty fake
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Binary:  make(map[string][]byte),
		Errors:  make(map[string]error),
	}
}

// AddSecretString adds a string secret
func (f *FakeSecretsManagerClient) AddSecretString(id, value string) {
	f.Secrets[id] = value
}

// AddSecretBinary adds a binary secret
func (f *FakeSecretsManagerClient) AddSecretBinary(id string, value []byte) {
	f.Binary[id] = value
}

// AddError makes reads of id fail with err
func (f *FakeSecretsManagerClient) AddError(id string, err error) {
	f.Errors[id] = err
}

// GetSecretValue returns the stored secret or ResourceNotFoundException
func (f *FakeSecretsManagerClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, params)

	id := aws.ToString(params.SecretId)
	if err, ok := f.Errors[id]; ok {
		return nil, err
	}
	if value, ok := f.Secrets[id]; ok {
		return &secretsmanager.GetSecretValueOutput{
			Name:         aws.String(id),
			SecretString: aws.String(value),
			VersionId:    aws.String("v1"),
		}, nil
	}
	if value, ok := f.Binary[id]; ok {
		return &secretsmanager.GetSecretValueOutput{
			Name:         aws.String(id),
			SecretBinary: value,
			VersionId:    aws.String("v1"),
		}, nil
	}
	return nil, &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", id)),
	}
}

// FakeSSMClient is a fake SSM client serving GetParametersByPath
type FakeSSMClient struct {
	// Parameters maps full parameter names to values
	Parameters map[string]string
	// PageSize limits results per page (default 10, as AWS does)
	PageSize int
	// Err is returned by every call when set
	Err error
	// Calls counts GetParametersByPath calls
	Calls int

	mu sync.Mutex
}

// NewFakeSSMClient creates an empty fake
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{Parameters: make(map[string]string)}
}

// PutParameter stores a parameter
func (f *FakeSSMClient) PutParameter(name, value string) {
	f.Parameters[name] = value
}

// GetParametersByPath returns the parameters directly under params.Path
func (f *FakeSSMClient) GetParametersByPath(_ context.Context, params *ssm.GetParametersByPathInput, _ ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++

	if f.Err != nil {
		return nil, f.Err
	}

	prefix := strings.TrimSuffix(aws.ToString(params.Path), "/") + "/"
	var names []string
	for name := range f.Parameters {
		rest := strings.TrimPrefix(name, prefix)
		if rest == name || rest == "" {
			continue
		}
		if strings.Contains(rest, "/") && !aws.ToBool(params.Recursive) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	start := 0
	if params.NextToken != nil {
		n, err := strconv.Atoi(*params.NextToken)
		if err != nil {
			return nil, fmt.Errorf("invalid next token %q", *params.NextToken)
		}
		start = n
	}
	size := f.PageSize
	if size <= 0 {
		size = 10
	}
	end := start + size
	if end > len(names) {
		end = len(names)
	}

	out := &ssm.GetParametersByPathOutput{}
	for _, name := range names[start:end] {
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{
			Name:  aws.String(name),
			Value: aws.String(f.Parameters[name]),
			Type:  ssmtypes.ParameterTypeSecureString,
		})
	}
	if end < len(names) {
		out.NextToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

// FakeSTSClient is a fake STS client for credential checks
type FakeSTSClient struct {
	// Err is returned by GetCallerIdentity when set
	Err error
	// Account is reported on success
	Account string
}

// NewFakeSTSClient creates a fake that accepts every call
func NewFakeSTSClient() *FakeSTSClient {
	return &FakeSTSClient{Account: "123456789012"}
}

// GetCallerIdentity returns the configured account or error
func (f *FakeSTSClient) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String("arn:aws:iam::" + f.Account + ":user/vaultenv"),
	}, nil
}
