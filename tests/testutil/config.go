package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/vaultenv/internal/config"
)

// TestConfigBuilder provides a fluent API for building vaultenv.yaml files.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithLiteral("static", map[string]string{"PORT": "8080"}).
//	    WithBinding("frameio", config.VaultConfig{
//	        Type:  "onepassword",
//	        Vault: "Engineering",
//	        Entry: "frameio-service",
//	    }).
//	    Write()
type TestConfigBuilder struct {
	def     *config.Definition
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a builder holding an empty version 0 configuration.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		def: &config.Definition{
			Version:  0,
			Bindings: make(map[string]config.Binding),
		},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithBinding adds a binding with the default timeout.
func (b *TestConfigBuilder) WithBinding(name string, vault config.VaultConfig) *TestConfigBuilder {
	b.def.Bindings[name] = config.Binding{Vault: vault}
	return b
}

// WithTimeout sets timeout_ms on an existing binding.
func (b *TestConfigBuilder) WithTimeout(name string, ms int) *TestConfigBuilder {
	b.t.Helper()

	binding, ok := b.def.Bindings[name]
	if !ok {
		b.t.Fatalf("WithTimeout: unknown binding %q", name)
	}
	binding.TimeoutMs = ms
	b.def.Bindings[name] = binding
	return b
}

// WithLiteral adds a literal binding serving values.
func (b *TestConfigBuilder) WithLiteral(name string, values map[string]string) *TestConfigBuilder {
	raw := make(map[string]interface{}, len(values))
	for k, v := range values {
		raw[k] = v
	}
	return b.WithBinding(name, config.VaultConfig{
		Type:   "literal",
		Params: map[string]interface{}{"values": raw},
	})
}

// Build returns the in-memory definition.
func (b *TestConfigBuilder) Build() *config.Definition {
	return b.def
}

// Write writes the configuration as vaultenv.yaml in a temp dir and returns its path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	path := filepath.Join(b.tempDir, config.DefaultPath)
	if err := b.WriteYAML(path); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// WriteYAML writes the configuration to a specific path.
func (b *TestConfigBuilder) WriteYAML(path string) error {
	data, err := yaml.Marshal(b.def)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// WriteTestConfig writes a YAML string as vaultenv.yaml in a temp dir.
//
// Example:
//
//	path := WriteTestConfig(t, `
//	version: 0
//	bindings:
//	  static:
//	    vault:
//	      type: literal
//	      values:
//	        API_KEY: test-key
//	`)
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultPath)
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// LoadTestConfig loads and validates a vaultenv.yaml, failing the test on error.
func LoadTestConfig(t *testing.T, path string) *config.Config {
	t.Helper()

	cfg := &config.Config{Path: path, Logger: NewTestLogger(t).Logger}
	if err := cfg.Load(); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
