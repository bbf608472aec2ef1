package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/systmms/vaultenv/pkg/vault"
)

// FakeVault is a manual fake implementation of vault.Vault and vault.Validator.
//
// It stores values in memory, records every Values call and can be
// configured to fail or to block until its context is done.
//
// Example usage:
//
//	fake := fakes.NewFakeVault("frameio").
//	    WithValue("API_KEY", "secret123").
//	    WithError(errors.New("connection failed"))
type FakeVault struct {
	name string

	values      map[string]string
	err         error
	validateErr error
	delay       time.Duration

	calls [][]string
	mu    sync.Mutex
}

// NewFakeVault creates an empty FakeVault
func NewFakeVault(name string) *FakeVault {
	return &FakeVault{name: name, values: make(map[string]string)}
}

// WithValue stores a value
func (f *FakeVault) WithValue(key, value string) *FakeVault {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return f
}

// WithValues stores every pair in values
func (f *FakeVault) WithValues(values map[string]string) *FakeVault {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range values {
		f.values[k] = v
	}
	return f
}

// WithError makes Values fail with err
func (f *FakeVault) WithError(err error) *FakeVault {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	return f
}

// WithValidateError makes Validate fail with err
func (f *FakeVault) WithValidateError(err error) *FakeVault {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validateErr = err
	return f
}

// WithDelay makes Values wait for d or until the context is done
func (f *FakeVault) WithDelay(d time.Duration) *FakeVault {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// Name returns the fake's name
func (f *FakeVault) Name() string {
	return f.name
}

// Values returns the stored values for keys
func (f *FakeVault) Values(ctx context.Context, keys []string) (map[string]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), keys...))
	delay, err := f.delay, f.err
	values := vault.Pick(f.values, keys)
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Validate returns the configured validation error
func (f *FakeVault) Validate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateErr
}

// Calls returns the key sets Values was called with
func (f *FakeVault) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how often Values was called
func (f *FakeVault) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
