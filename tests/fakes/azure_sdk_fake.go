package fakes

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureSecretsClient is a fake Key Vault secrets client.
// Secret names are matched case-insensitively, as Key Vault does.
type FakeAzureSecretsClient struct {
	// Secrets maps secret names to values
	Secrets map[string]string
	// GetErr is returned by GetSecret when set
	GetErr error
	// ListErr is returned by ListSecretNames when set
	ListErr error
	// Gets records the names passed to GetSecret
	Gets []string

	mu sync.Mutex
}

// NewFakeAzureSecretsClient creates an empty fake
func NewFakeAzureSecretsClient() *FakeAzureSecretsClient {
	return &FakeAzureSecretsClient{Secrets: make(map[string]string)}
}

// SetSecret stores a secret
func (f *FakeAzureSecretsClient) SetSecret(name, value string) {
	f.Secrets[name] = value
}

// GetSecret returns the secret or a 404 ResponseError
func (f *FakeAzureSecretsClient) GetSecret(_ context.Context, name string, _ string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gets = append(f.Gets, name)

	if f.GetErr != nil {
		return azsecrets.GetSecretResponse{}, f.GetErr
	}
	for stored, value := range f.Secrets {
		if strings.EqualFold(stored, name) {
			v := value
			return azsecrets.GetSecretResponse{Secret: azsecrets.Secret{Value: &v}}, nil
		}
	}
	return azsecrets.GetSecretResponse{}, &azcore.ResponseError{
		ErrorCode:  "SecretNotFound",
		StatusCode: http.StatusNotFound,
	}
}

// ListSecretNames returns the stored names in sorted order
func (f *FakeAzureSecretsClient) ListSecretNames(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	names := make([]string, 0, len(f.Secrets))
	for name := range f.Secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
