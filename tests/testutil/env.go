package testutil

import (
	"os"
	"testing"
)

// SetupTestEnv sets environment variables for the duration of a test.
//
// The previous values are restored by t.Cleanup. Tests that call this must
// not run in parallel.
//
// Example usage:
//
//	SetupTestEnv(t, map[string]string{
//	    "VAULT_ADDR":  "http://127.0.0.1:8200",
//	    "VAULT_TOKEN": "root",
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for key, value := range vars {
		t.Setenv(key, value)
	}
}

// UnsetTestEnv removes environment variables for the duration of a test.
func UnsetTestEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		orig, had := os.LookupEnv(key)
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Failed to unset environment variable %s: %v", key, err)
		}
		key := key
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(key, orig)
			}
		})
	}
}

// Environ builds a KEY=value slice for code that takes an explicit environment.
func Environ(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	return out
}
