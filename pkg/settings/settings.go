// Package settings fills tagged structs from prioritized configuration
// sources and falls back to a vault for required values that are still
// missing.
//
// Struct tags follow github.com/caarlos0/env/v11:
//
//	type Settings struct {
//	    APIKey  string `env:"API_KEY,required"`
//	    Region  string `env:"REGION" envDefault:"us-east-1"`
//	}
//
//	var s Settings
//	err := settings.Load(ctx, &s, settings.WithDotenv(".env"), settings.WithVault(v))
//
// Sources are consulted in order: explicit values, arguments, the process
// environment, dotenv files and a secrets directory. The vault is asked
// only when a required field is unset after all of them, and its values
// never replace a value from another source.
package settings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"

	"github.com/systmms/vaultenv/pkg/vault"
)

// Field describes one settings field
type Field struct {
	Key        string
	Required   bool
	HasDefault bool
	Default    string
}

// NeedsValue reports whether parsing fails when the field is unset
func (f Field) NeedsValue() bool {
	return f.Required && !f.HasDefault
}

// VaultBinder is implemented by settings types that carry their own vault
type VaultBinder interface {
	SettingsVault() vault.Vault
}

// Resolution is the outcome of resolving a settings struct
type Resolution struct {
	// Values holds every resolved key, vault values included
	Values map[string]string
	// Origins records where each value came from
	Origins map[string]Origin
	// Missing lists keys without a value before the vault was consulted
	Missing []string
	// VaultQueried is true when the vault was called
	VaultQueried bool
}

// Loader resolves settings from its configured sources
type Loader struct {
	opts options
}

// New creates a Loader
func New(opts ...Option) *Loader {
	return &Loader{opts: buildOptions(opts)}
}

// Load fills target using a Loader built from opts
func Load(ctx context.Context, target interface{}, opts ...Option) error {
	return New(opts...).Load(ctx, target)
}

// Fields lists the fields declared by target, a pointer to a struct
func Fields(target interface{}, opts ...Option) ([]Field, error) {
	o := buildOptions(opts)
	return o.fields(target)
}

func (o options) envOptions() env.Options {
	return env.Options{
		Prefix:                o.prefix,
		RequiredIfNoDef:       o.requiredIfNoDef,
		UseFieldNameByDefault: o.fieldNames,
	}
}

func (o options) fields(target interface{}) ([]Field, error) {
	params, err := env.GetFieldParamsWithOptions(target, o.envOptions())
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(params))
	for _, p := range params {
		if p.Key == "" || p.Ignored {
			continue
		}
		fields = append(fields, Field{
			Key:        p.Key,
			Required:   p.Required || (o.requiredIfNoDef && !p.HasDefaultValue),
			HasDefault: p.HasDefaultValue,
			Default:    p.DefaultValue,
		})
	}
	return fields, nil
}

// Load resolves every field and parses the result into target.
// Missing required fields surface as env.AggregateError.
func (l *Loader) Load(ctx context.Context, target interface{}) error {
	res, err := l.Resolve(ctx, target)
	if err != nil {
		return err
	}

	envOpts := l.opts.envOptions()
	envOpts.Environment = res.Values
	return env.ParseWithOptions(target, envOpts)
}

// Resolve looks every field up in the configured sources and consults the
// vault for the unset keys when a required field is missing.
func (l *Loader) Resolve(ctx context.Context, target interface{}) (Resolution, error) {
	res := Resolution{
		Values:  make(map[string]string),
		Origins: make(map[string]Origin),
	}

	fields, err := l.opts.fields(target)
	if err != nil {
		return res, err
	}

	sources, err := l.opts.sources()
	if err != nil {
		return res, err
	}

	requiredMissing := false
	missing := make(map[string]bool)
	for _, f := range fields {
		if _, done := res.Values[f.Key]; done {
			continue
		}
		found := false
		for _, src := range sources {
			if v, ok := src.lookup(f.Key, l.opts.caseSensitive); ok {
				res.Values[f.Key] = v
				res.Origins[f.Key] = src.origin
				found = true
				break
			}
		}
		if !found {
			if !missing[f.Key] {
				missing[f.Key] = true
				res.Missing = append(res.Missing, f.Key)
			}
			if f.NeedsValue() {
				requiredMissing = true
			}
		}
	}
	sort.Strings(res.Missing)

	if !requiredMissing {
		return res, nil
	}

	v := l.vaultFor(target)
	if v == nil {
		l.opts.logger.Debug("No vault configured for %d missing setting(s)", len(res.Missing))
		return res, nil
	}

	l.opts.logger.Debug("Querying vault %s for %d missing setting(s)", v.Name(), len(res.Missing))
	start := time.Now()
	fetched, err := v.Values(ctx, res.Missing)
	res.VaultQueried = true
	l.opts.metrics.RecordVaultRequest(v.Name(), time.Since(start), len(fetched), err)
	if err != nil {
		return res, fmt.Errorf("vault %s: %w", v.Name(), err)
	}

	// Only requested keys are merged, so every destination key is unset and
	// mergo never has to decide between two values.
	picked := vault.Pick(fetched, res.Missing)
	if err := mergo.Merge(&res.Values, picked); err != nil {
		return res, fmt.Errorf("failed to merge vault values: %w", err)
	}
	for k := range picked {
		if _, ok := res.Origins[k]; !ok {
			res.Origins[k] = OriginVault
		}
	}
	return res, nil
}

func (l *Loader) vaultFor(target interface{}) vault.Vault {
	if l.opts.vault != nil {
		return l.opts.vault
	}
	if binder, ok := target.(VaultBinder); ok {
		return binder.SettingsVault()
	}
	return nil
}
