package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/internal/logging"
)

// DefaultPath is the configuration file looked up when --config is not given
const DefaultPath = "vaultenv.yaml"

// DefaultTimeout applies to bindings without timeout_ms
const DefaultTimeout = 30 * time.Second

//go:embed schema.json
var schemaJSON string

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	Definition     *Definition
}

// Definition represents the vaultenv.yaml structure
type Definition struct {
	Version  int                `yaml:"version"`
	Bindings map[string]Binding `yaml:"bindings,omitempty"`
}

// Binding names a vault whose values are synced into the env file
type Binding struct {
	TimeoutMs int         `yaml:"timeout_ms,omitempty"`
	Vault     VaultConfig `yaml:"vault"`
}

// VaultConfig selects a provider and the entry to read from it.
// Provider specific keys (account, region, mount, ...) land in Params.
type VaultConfig struct {
	Type   string                 `yaml:"type"`
	Vault  string                 `yaml:"vault,omitempty"`
	Entry  string                 `yaml:"entry,omitempty"`
	Params map[string]interface{} `yaml:",inline"`
}

// Load reads, validates and parses the vaultenv.yaml file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return vverrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Run 'vaultenv init' to create a new configuration file",
			}
		}
		return vverrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	c.Definition = def
	if c.Logger != nil {
		c.Logger.Debug("Loaded %s with %d binding(s)", c.Path, len(def.Bindings))
	}
	return nil
}

// Parse decodes and validates a vaultenv.yaml document
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, vverrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.Version != 0 {
		return nil, vverrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your vaultenv.yaml file",
		}
	}

	if err := validateSchema(data); err != nil {
		return nil, err
	}

	return &def, nil
}

func validateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode configuration for validation: %w", err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		sort.Strings(problems)
		return vverrors.ConfigError{
			Field:      result.Errors()[0].Field(),
			Message:    "configuration does not match schema:\n  - " + strings.Join(problems, "\n  - "),
			Suggestion: "Every binding needs a 'vault:' mapping with a 'type'",
		}
	}
	return nil
}

// BindingNames returns the configured binding names in sorted order
func (c *Config) BindingNames() []string {
	if c.Definition == nil {
		return nil
	}
	names := make([]string, 0, len(c.Definition.Bindings))
	for name := range c.Definition.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetBinding returns the configuration for a named binding
func (c *Config) GetBinding(name string) (Binding, error) {
	if c.Definition == nil {
		return Binding{}, vverrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	if b, ok := c.Definition.Bindings[name]; ok {
		return b, nil
	}

	suggestion := "Add the binding to the 'bindings:' section of your vaultenv.yaml"
	if available := c.BindingNames(); len(available) > 0 {
		suggestion = fmt.Sprintf("Available bindings: %s", strings.Join(available, ", "))
	}
	return Binding{}, vverrors.ConfigError{
		Field:      "binding",
		Value:      name,
		Message:    "binding not found in configuration",
		Suggestion: suggestion,
	}
}

// Timeout returns the per-binding vault timeout
func (b Binding) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Identity returns a canonical string for the provider configuration.
// Two bindings with equal identities query the same data.
func (v VaultConfig) Identity() string {
	doc := map[string]interface{}{
		"type":  v.Type,
		"vault": v.Vault,
		"entry": v.Entry,
	}
	for k, val := range v.Params {
		doc["param."+k] = val
	}
	// encoding/json sorts map keys
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Sprintf("%s|%s|%s|%v", v.Type, v.Vault, v.Entry, v.Params)
	}
	return string(data)
}

// String returns a string parameter, or "" when unset or not a string
func (v VaultConfig) String(key string) string {
	if s, ok := v.Params[key].(string); ok {
		return s
	}
	return ""
}

// Bool returns a boolean parameter
func (v VaultConfig) Bool(key string) bool {
	b, _ := v.Params[key].(bool)
	return b
}

// Int returns an integer parameter, or def when unset
func (v VaultConfig) Int(key string, def int) int {
	switch n := v.Params[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

// Strings returns a list parameter. Non-string items are formatted with %v.
func (v VaultConfig) Strings(key string) []string {
	raw, ok := v.Params[key].([]interface{})
	if !ok {
		if s, ok := v.Params[key].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out
}

// StringMap returns a mapping parameter with values formatted as strings
func (v VaultConfig) StringMap(key string) map[string]string {
	out := make(map[string]string)
	switch m := v.Params[key].(type) {
	case map[string]interface{}:
		for k, val := range m {
			if s, ok := val.(string); ok {
				out[k] = s
				continue
			}
			out[k] = fmt.Sprintf("%v", val)
		}
	case map[string]string:
		for k, val := range m {
			out[k] = val
		}
	default:
		return nil
	}
	return out
}
