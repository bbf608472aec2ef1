package vaults

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/systmms/vaultenv/internal/config"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/pkg/exec"
	"github.com/systmms/vaultenv/pkg/vault"
)

// 1Password CLI failures. The messages are shown to users verbatim.
var (
	ErrOnePasswordNotInstalled = errors.New("1Password CLI executable was not found. Install `op` or set executable.")
	ErrOnePasswordInvalidJSON  = errors.New("Failed to parse 1Password CLI JSON response.")
	ErrOnePasswordSchema       = errors.New("1Password CLI output did not match expected schema.")
)

// OnePasswordReadError is returned when `op item get` exits non-zero
type OnePasswordReadError struct {
	Message  string
	ExitCode int
	Err      error
}

func (e *OnePasswordReadError) Error() string {
	return "Failed to read item from 1Password: " + e.Message
}

func (e *OnePasswordReadError) Unwrap() error {
	return e.Err
}

// OnePasswordVault reads the fields of one 1Password item through the op CLI
type OnePasswordVault struct {
	name       string
	vaultName  string
	entry      string
	account    string
	executable string
	executor   exec.CommandExecutor
}

// OnePasswordOption configures a OnePasswordVault
type OnePasswordOption func(*OnePasswordVault)

// WithCommandExecutor sets the executor used to run the op CLI (for testing)
func WithCommandExecutor(executor exec.CommandExecutor) OnePasswordOption {
	return func(p *OnePasswordVault) {
		p.executor = executor
	}
}

// NewOnePasswordVault creates a 1Password vault for one item
func NewOnePasswordVault(name string, cfg config.VaultConfig, opts ...OnePasswordOption) (*OnePasswordVault, error) {
	if cfg.Vault == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.vault",
			Message:    "vault is required for 1Password",
			Suggestion: "Set the 1Password vault name, e.g. 'vault: Engineering'",
		}
	}
	if cfg.Entry == "" {
		return nil, vverrors.ConfigError{
			Field:      "bindings." + name + ".vault.entry",
			Message:    "entry is required for 1Password",
			Suggestion: "Set the item name or ID, e.g. 'entry: frameio-service'",
		}
	}

	p := &OnePasswordVault{
		name:       name,
		vaultName:  cfg.Vault,
		entry:      cfg.Entry,
		account:    cfg.String("account"),
		executable: cfg.String("executable"),
		executor:   exec.DefaultExecutor(),
	}
	if p.executable == "" {
		p.executable = "op"
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns the binding name
func (p *OnePasswordVault) Name() string {
	return p.name
}

// Values returns the item's field values keyed by field label
func (p *OnePasswordVault) Values(ctx context.Context, keys []string) (map[string]string, error) {
	args := []string{"item", "get", p.entry, "--vault", p.vaultName, "--format", "json"}
	if p.account != "" {
		args = append(args, "--account", p.account)
	}

	stdout, stderr, err := p.executor.Execute(ctx, p.executable, args...)
	if err != nil {
		if exec.IsNotFound(err) {
			return nil, ErrOnePasswordNotInstalled
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		message := strings.TrimSpace(string(stderr))
		if message == "" {
			message = "unknown error"
		}
		return nil, &OnePasswordReadError{Message: message, ExitCode: exec.ExitCode(err), Err: err}
	}

	all, err := parseOnePasswordItem(stdout)
	if err != nil {
		return nil, err
	}
	return vault.Pick(all, keys), nil
}

// Validate checks that the CLI is installed and signed in
func (p *OnePasswordVault) Validate(ctx context.Context) error {
	args := []string{"account", "get"}
	if p.account != "" {
		args = append(args, "--account", p.account)
	}

	_, stderr, err := p.executor.Execute(ctx, p.executable, args...)
	if err != nil {
		if exec.IsNotFound(err) {
			return ErrOnePasswordNotInstalled
		}
		message := strings.TrimSpace(string(stderr))
		if message == "" {
			message = "Run: op signin"
		}
		return vault.AuthError{Vault: p.name, Message: message}
	}
	return nil
}

type onePasswordItem struct {
	ID     *string             `json:"id"`
	Title  *string             `json:"title"`
	Fields *[]onePasswordField `json:"fields"`
}

type onePasswordField struct {
	Label *string         `json:"label"`
	Type  *string         `json:"type"`
	Value json.RawMessage `json:"value"`
}

func parseOnePasswordItem(payload []byte) (map[string]string, error) {
	if !json.Valid(payload) {
		return nil, ErrOnePasswordInvalidJSON
	}

	var item onePasswordItem
	if err := json.Unmarshal(payload, &item); err != nil {
		return nil, ErrOnePasswordSchema
	}
	if item.ID == nil || item.Title == nil || item.Fields == nil {
		return nil, ErrOnePasswordSchema
	}

	values := make(map[string]string, len(*item.Fields))
	for _, field := range *item.Fields {
		if field.Label == nil || field.Type == nil {
			return nil, ErrOnePasswordSchema
		}
		if *field.Label == "" {
			continue
		}
		value, ok, err := rawString(field.Value)
		if err != nil {
			return nil, ErrOnePasswordSchema
		}
		if ok {
			values[*field.Label] = value
		}
	}
	return values, nil
}
