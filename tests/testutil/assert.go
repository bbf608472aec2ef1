package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultenv/internal/envfile"
)

// AssertSecretRedacted verifies that a secret value does not appear in output
// and that the [REDACTED] marker does.
//
// Example usage:
//
//	AssertSecretRedacted(t, logger.GetOutput(), "password123")
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecretLeak verifies that none of secrets appear in output.
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		assert.NotContains(t, output, secret,
			"Secret %q should not appear in output", secret)
	}
}

// AssertFileContents verifies that a file exists and holds exactly expected.
func AssertFileContents(t *testing.T, path string, expected string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read file %s", path)
	assert.Equal(t, expected, string(data), "File contents mismatch for %s", path)
}

// AssertManagedValues verifies the managed block of an env file holds exactly want.
func AssertManagedValues(t *testing.T, path string, want map[string]string) {
	t.Helper()

	contents, err := envfile.Read(path)
	require.NoError(t, err)

	got, err := envfile.Managed(contents)
	require.NoError(t, err)
	assert.Equal(t, want, got, "managed block of %s", path)
}

// AssertErrorContains verifies that err is non-nil and mentions substr.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()

	require.Error(t, err, "Expected an error to occur")
	assert.Contains(t, err.Error(), substr, "Error message should contain %q", substr)
}

// AssertLinesContain verifies that each expected string appears on some line of output.
func AssertLinesContain(t *testing.T, output string, expectedLines []string) {
	t.Helper()

	lines := strings.Split(output, "\n")
	for _, expected := range expectedLines {
		found := false
		for _, line := range lines {
			if strings.Contains(line, expected) {
				found = true
				break
			}
		}
		assert.True(t, found, "Expected to find line containing %q in output", expected)
	}
}
