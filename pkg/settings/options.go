package settings

import (
	"github.com/systmms/vaultenv/internal/logging"
	"github.com/systmms/vaultenv/internal/metrics"
	"github.com/systmms/vaultenv/pkg/vault"
)

// Option configures a Loader
type Option func(*options)

type options struct {
	vault           vault.Vault
	values          map[string]string
	args            []string
	environ         []string
	environSet      bool
	dotenv          []string
	secretsDir      string
	prefix          string
	caseSensitive   bool
	requiredIfNoDef bool
	fieldNames      bool
	logger          *logging.Logger
	metrics         *metrics.Metrics
}

// WithVault sets the fallback vault, overriding any VaultBinder on the target
func WithVault(v vault.Vault) Option {
	return func(o *options) { o.vault = v }
}

// WithValues supplies explicit values. They take precedence over every other source.
func WithValues(values map[string]string) Option {
	return func(o *options) {
		if o.values == nil {
			o.values = make(map[string]string, len(values))
		}
		for k, v := range values {
			o.values[k] = v
		}
	}
}

// WithArgs parses command line style arguments: --some-key=value,
// --some-key value and SOME_KEY=value.
func WithArgs(args []string) Option {
	return func(o *options) { o.args = append(o.args, args...) }
}

// WithEnviron replaces os.Environ() as the process environment source
func WithEnviron(environ []string) Option {
	return func(o *options) {
		o.environ = environ
		o.environSet = true
	}
}

// WithDotenv adds dotenv files. Later files override earlier ones and
// missing files are skipped.
func WithDotenv(paths ...string) Option {
	return func(o *options) { o.dotenv = append(o.dotenv, paths...) }
}

// WithSecretsDir reads one value per file from dir, keyed by file name
func WithSecretsDir(dir string) Option {
	return func(o *options) { o.secretsDir = dir }
}

// WithPrefix prepends prefix to every key
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithCaseSensitive disables case folding when matching keys against sources
func WithCaseSensitive(sensitive bool) Option {
	return func(o *options) { o.caseSensitive = sensitive }
}

// WithRequiredIfNoDefault treats every field without envDefault as required
func WithRequiredIfNoDefault() Option {
	return func(o *options) { o.requiredIfNoDef = true }
}

// WithFieldNames derives keys from field names when the env tag is absent
func WithFieldNames() Option {
	return func(o *options) { o.fieldNames = true }
}

// WithLogger sets the logger used for debug output
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records vault requests in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	return o
}
