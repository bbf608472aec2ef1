package fakes

import (
	"github.com/zalando/go-keyring"
)

// FakeKeyring is an in-memory keyring keyed by service and account
type FakeKeyring struct {
	// Secrets is a map of service -> account -> value
	Secrets map[string]map[string]string
	// Err is returned by Get when set
	Err error
}

// NewFakeKeyring creates an empty fake keyring
func NewFakeKeyring() *FakeKeyring {
	return &FakeKeyring{Secrets: make(map[string]map[string]string)}
}

// Set stores a secret
func (f *FakeKeyring) Set(service, account, value string) {
	if f.Secrets[service] == nil {
		f.Secrets[service] = make(map[string]string)
	}
	f.Secrets[service][account] = value
}

// Get returns the stored secret or keyring.ErrNotFound
func (f *FakeKeyring) Get(service, account string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	value, ok := f.Secrets[service][account]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return value, nil
}
