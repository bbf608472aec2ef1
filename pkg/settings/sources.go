package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/subosito/gotenv"

	"github.com/systmms/vaultenv/internal/envfile"
)

// Origin names the source a value was resolved from
type Origin string

const (
	OriginValues  Origin = "values"
	OriginArgs    Origin = "args"
	OriginEnv     Origin = "env"
	OriginDotenv  Origin = "dotenv"
	OriginSecrets Origin = "secrets"
	OriginVault   Origin = "vault"
)

type source struct {
	origin Origin
	values map[string]string
	folded map[string]string
}

func newSource(origin Origin, values map[string]string) source {
	src := source{origin: origin, values: values, folded: make(map[string]string, len(values))}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		upper := strings.ToUpper(k)
		if _, taken := src.folded[upper]; !taken {
			src.folded[upper] = values[k]
		}
	}
	return src
}

func (s source) lookup(key string, caseSensitive bool) (string, bool) {
	if v, ok := s.values[key]; ok {
		return v, true
	}
	if caseSensitive {
		return "", false
	}
	v, ok := s.folded[strings.ToUpper(key)]
	return v, ok
}

// sources returns the non-vault sources in priority order
func (o options) sources() ([]source, error) {
	var out []source

	if len(o.values) > 0 {
		out = append(out, newSource(OriginValues, o.values))
	}

	if len(o.args) > 0 {
		out = append(out, newSource(OriginArgs, parseArgs(o.args)))
	}

	environ := o.environ
	if !o.environSet {
		environ = os.Environ()
	}
	out = append(out, newSource(OriginEnv, env.ToMap(environ)))

	if len(o.dotenv) > 0 {
		values, err := readDotenv(o.dotenv)
		if err != nil {
			return nil, err
		}
		out = append(out, newSource(OriginDotenv, values))
	}

	if o.secretsDir != "" {
		values, err := readSecretsDir(o.secretsDir)
		if err != nil {
			return nil, err
		}
		out = append(out, newSource(OriginSecrets, values))
	}

	return out, nil
}

// parseArgs turns --some-key=value, --some-key value and SOME_KEY=value
// into SOME_KEY keyed values. A trailing flag without a value is ignored.
func parseArgs(args []string) map[string]string {
	values := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			name := strings.TrimLeft(arg, "-")
			if name == "" {
				continue
			}
			if k, v, ok := strings.Cut(name, "="); ok {
				values[argKey(k)] = v
				continue
			}
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
				values[argKey(name)] = args[i+1]
				i++
			}
			continue
		}
		if k, v, ok := strings.Cut(arg, "="); ok && k != "" {
			values[k] = v
		}
	}
	return values
}

func argKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

func readDotenv(paths []string) (map[string]string, error) {
	values := make(map[string]string)
	for _, path := range paths {
		fileValues, err := gotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read dotenv file %s: %w", path, err)
		}
		for k, v := range fileValues {
			values[k] = v
		}

		// Managed block values are taken verbatim, without expansion
		contents, err := envfile.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read dotenv file %s: %w", path, err)
		}
		managed, err := envfile.Managed(contents)
		if err != nil {
			return nil, fmt.Errorf("failed to read dotenv file %s: %w", path, err)
		}
		for k, v := range managed {
			values[k] = v
		}
	}
	return values, nil
}

func readSecretsDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read secrets directory %s: %w", dir, err)
	}

	values := make(map[string]string, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		// Stat follows the symlinks mounted secret volumes use
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret %s: %w", entry.Name(), err)
		}
		values[entry.Name()] = strings.TrimSpace(string(data))
	}
	return values, nil
}
