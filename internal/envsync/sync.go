// Package envsync writes the values of configured vault bindings into the
// managed block of an env file.
package envsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dario.cat/mergo"

	"github.com/systmms/vaultenv/internal/envfile"
	vverrors "github.com/systmms/vaultenv/internal/errors"
	"github.com/systmms/vaultenv/internal/logging"
	"github.com/systmms/vaultenv/internal/metrics"
	"github.com/systmms/vaultenv/internal/secure"
	"github.com/systmms/vaultenv/pkg/vault"
)

// DefaultEnvFile is written when no env file is given
const DefaultEnvFile = ".env"

// DefaultPermissions apply to newly created env files
const DefaultPermissions os.FileMode = 0600

// maxAttempts bounds vault calls per binding when errors are transient
const maxAttempts = 2

// ErrOutOfDate is returned in check mode when the env file would change
var ErrOutOfDate = errors.New("env file is out of date")

// Binding is one named vault whose values are synced
type Binding struct {
	Name string
	// Type is the provider type, used for metrics and error hints
	Type string
	// Identity identifies the provider configuration. Bindings sharing an
	// identity are queried once.
	Identity string
	Timeout  time.Duration
	Vault    vault.Vault
}

// Options control one sync run
type Options struct {
	EnvFile     string
	ProjectRoot string
	// AllowErrors skips failing bindings instead of aborting
	AllowErrors bool
	// Check computes the result without writing and returns ErrOutOfDate on drift
	Check       bool
	Permissions os.FileMode
}

// Result summarizes a sync run
type Result struct {
	EnvFile          string
	Bindings         int
	ProvidersQueried int
	VariablesWritten int
	Errors           []error
	// Changed reports whether the file was (or in check mode would be) rewritten
	Changed bool
	// Drift lists keys whose managed value differs from the vault, in check mode
	Drift []string
}

// Summary is the line printed after a run
func (r Result) Summary() string {
	return fmt.Sprintf("Wrote %d variable(s) from %d provider(s) across %d binding(s) to %s.",
		r.VariablesWritten, r.ProvidersQueried, r.Bindings, r.EnvFile)
}

// Warning is printed to stderr when bindings were skipped, or "" when none were
func (r Result) Warning() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("Warning: skipped %d binding error(s).", len(r.Errors))
}

// Syncer runs syncs
type Syncer struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// New creates a Syncer. Both arguments may be nil.
func New(logger *logging.Logger, m *metrics.Metrics) *Syncer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Syncer{logger: logger, metrics: m}
}

// ResolveEnvFile returns envFile as an absolute path, relative paths being
// taken from projectRoot
func ResolveEnvFile(projectRoot, envFile string) (string, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if projectRoot == "" {
		projectRoot = "."
	}
	if !filepath.IsAbs(envFile) {
		envFile = filepath.Join(projectRoot, envFile)
	}
	return filepath.Abs(envFile)
}

// Sync pulls every binding and writes the merged values into the env file
func (s *Syncer) Sync(ctx context.Context, bindings []Binding, opts Options) (Result, error) {
	path, err := ResolveEnvFile(opts.ProjectRoot, opts.EnvFile)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve env file: %w", err)
	}
	result := Result{EnvFile: path, Bindings: len(bindings)}

	sealed, err := s.collect(ctx, bindings, opts, &result)
	if err != nil {
		s.metrics.RecordSync("error", 0)
		return result, err
	}
	defer sealed.Destroy()

	values, err := sealed.RevealAll()
	if err != nil {
		s.metrics.RecordSync("error", 0)
		return result, err
	}
	result.VariablesWritten = sealed.Len()

	existing, err := envfile.Read(path)
	if err != nil {
		s.metrics.RecordSync("error", 0)
		return result, vverrors.UserError{
			Message:    "Failed to read env file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	output, err := envfile.Upsert(existing, envfile.RenderBlock(values))
	if err != nil {
		s.metrics.RecordSync("error", 0)
		return result, fmt.Errorf("%s: %w", path, err)
	}

	result.Changed = output != existing

	if opts.Check {
		if !result.Changed {
			s.metrics.RecordSync("unchanged", result.VariablesWritten)
			return result, nil
		}
		result.Drift = drift(existing, sealed)
		s.metrics.RecordSync("out_of_date", result.VariablesWritten)
		return result, ErrOutOfDate
	}

	if !result.Changed {
		s.logger.Debug("%s already up to date", path)
		s.metrics.RecordSync("unchanged", result.VariablesWritten)
		return result, nil
	}

	perm := opts.Permissions
	if perm == 0 {
		perm = DefaultPermissions
	}
	if err := envfile.Write(path, output, perm); err != nil {
		s.metrics.RecordSync("error", 0)
		return result, vverrors.UserError{
			Message:    "Failed to write env file",
			Details:    err.Error(),
			Suggestion: "Check that the directory is writable",
			Err:        err,
		}
	}
	s.metrics.RecordSync("written", result.VariablesWritten)
	return result, nil
}

// collect queries each distinct provider in binding name order. Later
// bindings override earlier ones on key collisions.
func (s *Syncer) collect(ctx context.Context, bindings []Binding, opts Options, result *Result) (*secure.Store, error) {
	ordered := make([]Binding, len(bindings))
	copy(ordered, bindings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Name < ordered[j].Name
	})

	merged := make(map[string]string)
	seen := make(map[string]bool)

	for _, b := range ordered {
		id := b.Identity
		if id == "" {
			id = "binding:" + b.Name
		}
		if seen[id] {
			s.logger.Debug("Binding %s shares a provider with an earlier binding, skipping", b.Name)
			continue
		}
		seen[id] = true
		result.ProvidersQueried++

		values, err := s.query(ctx, b)
		if err != nil {
			if !opts.AllowErrors {
				return nil, err
			}
			s.logger.Warn("Skipping binding %s: %s", b.Name, logging.Redact(err.Error(), collected(merged)))
			result.Errors = append(result.Errors, err)
			continue
		}

		s.logger.Debug("Binding %s returned %d value(s)", b.Name, len(values))
		if err := mergo.Merge(&merged, values, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge values of binding %s: %w", b.Name, err)
		}
	}

	store := secure.NewStore()
	store.SealAll(merged)
	for k := range merged {
		delete(merged, k)
	}
	return store, nil
}

func collected(values map[string]string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func (s *Syncer) query(ctx context.Context, b Binding) (map[string]string, error) {
	callCtx, cancel := withBindingTimeout(ctx, b.Timeout)
	defer cancel()

	var (
		values map[string]string
		err    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		values, err = b.Vault.Values(callCtx, nil)
		s.metrics.RecordVaultRequest(b.Type, time.Since(start), len(values), err)
		if err == nil || attempt == maxAttempts || callCtx.Err() != nil || !vverrors.IsRetryable(err) {
			break
		}
		s.logger.Debug("Binding %s failed with a transient error, retrying: %v", b.Name, err)
	}
	if err != nil {
		if timeoutErr := timeoutError(err, b.Type, b.Timeout); timeoutErr != err {
			return nil, fmt.Errorf("binding %s: %w", b.Name, timeoutErr)
		}
		providerErr := vverrors.ProviderError(b.Type, "sync", err)
		if userErr, ok := providerErr.(vverrors.UserError); ok {
			userErr.Details = err.Error()
			providerErr = userErr
		}
		return nil, fmt.Errorf("binding %s: %w", b.Name, providerErr)
	}
	return values, nil
}

// drift lists the keys whose value in the current managed block differs from
// the sealed values
func drift(existing string, sealed *secure.Store) []string {
	current, err := envfile.Managed(existing)
	if err != nil {
		current = map[string]string{}
	}

	var keys []string
	wanted := make(map[string]bool, sealed.Len())
	for _, k := range sealed.Keys() {
		wanted[k] = true
		v, _, err := sealed.Reveal(k)
		if cur, ok := current[k]; err != nil || !ok || cur != v {
			keys = append(keys, k)
		}
	}
	for k := range current {
		if !wanted[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
