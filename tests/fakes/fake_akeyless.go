package fakes

import (
	"context"
	"errors"
	"sync"
)

// ErrFakeAkeylessNotFound is the default error for unknown paths.
// Tests usually set NotFoundErr to the vault package's sentinel instead.
var ErrFakeAkeylessNotFound = errors.New("item not found")

// FakeAkeylessClient is a fake Akeyless gateway
type FakeAkeylessClient struct {
	// Secrets maps item paths to values
	Secrets map[string]string
	// Token is returned by Authenticate
	Token string
	// AuthErr is returned by Authenticate when set
	AuthErr error
	// NotFoundErr is returned for unknown paths
	NotFoundErr error
	// AuthCalls counts Authenticate calls
	AuthCalls int
	// SeenTokens records the tokens passed to GetSecretValue
	SeenTokens []string

	mu sync.Mutex
}

// NewFakeAkeylessClient creates an empty fake
func NewFakeAkeylessClient() *FakeAkeylessClient {
	return &FakeAkeylessClient{
		Secrets:     make(map[string]string),
		Token:       "t-fake-token",
		NotFoundErr: ErrFakeAkeylessNotFound,
	}
}

// SetSecret stores a secret value
func (f *FakeAkeylessClient) SetSecret(path, value string) {
	f.Secrets[path] = value
}

// Authenticate returns the configured token
func (f *FakeAkeylessClient) Authenticate(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthCalls++
	if f.AuthErr != nil {
		return "", f.AuthErr
	}
	return f.Token, nil
}

// GetSecretValue returns the stored value
func (f *FakeAkeylessClient) GetSecretValue(_ context.Context, token, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SeenTokens = append(f.SeenTokens, token)
	value, ok := f.Secrets[path]
	if !ok {
		return "", f.NotFoundErr
	}
	return value, nil
}
