package secure

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed Store is read
var ErrDestroyed = errors.New("secure store has been destroyed")

// Store holds key/value pairs sealed in memguard enclaves.
// It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*memguard.Enclave
	destroyed bool
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{entries: make(map[string]*memguard.Enclave)}
}

// Seal encrypts value under key, replacing any previous value.
// An empty value is recorded without an enclave.
func (s *Store) Seal(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	// NewEnclave wipes its input, so hand it a private copy
	s.entries[key] = memguard.NewEnclave([]byte(value))
}

// SealAll seals every pair in values
func (s *Store) SealAll(values map[string]string) {
	for k, v := range values {
		s.Seal(k, v)
	}
}

// Reveal decrypts the value stored under key
func (s *Store) Reveal(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return "", false, ErrDestroyed
	}
	enclave, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	value, err := open(enclave)
	if err != nil {
		return "", true, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return value, true, nil
}

// RevealAll decrypts every stored value
func (s *Store) RevealAll() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	out := make(map[string]string, len(s.entries))
	for k, enclave := range s.entries {
		value, err := open(enclave)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", k, err)
		}
		out[k] = value
	}
	return out, nil
}

// Keys returns the stored keys in sorted order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored values
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Destroy drops every enclave. It is idempotent.
func (s *Store) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*memguard.Enclave)
	s.destroyed = true
}

func open(enclave *memguard.Enclave) (string, error) {
	// memguard returns a nil enclave for empty input
	if enclave == nil {
		return "", nil
	}
	locked, err := enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}
