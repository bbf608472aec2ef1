package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// ProjectDir is a temporary project layout with a vaultenv.yaml, env files
// and a secrets directory.
//
// Example usage:
//
//	project := NewProjectDir(t)
//	project.WriteEnvFile(".env", "DEBUG=1\n")
//	project.WriteSecret("DATABASE_URL", "postgres://localhost/app")
type ProjectDir struct {
	Root string
	t    *testing.T
}

// NewProjectDir creates an empty project in a temp dir.
func NewProjectDir(t *testing.T) *ProjectDir {
	t.Helper()
	return &ProjectDir{Root: t.TempDir(), t: t}
}

// Path joins elem onto the project root.
func (p *ProjectDir) Path(elem ...string) string {
	return filepath.Join(append([]string{p.Root}, elem...)...)
}

// WriteFile writes contents to a file relative to the root, creating parents.
func (p *ProjectDir) WriteFile(name, contents string) string {
	p.t.Helper()

	path := p.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		p.t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		p.t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// WriteEnvFile writes a dotenv file relative to the root.
func (p *ProjectDir) WriteEnvFile(name, contents string) string {
	p.t.Helper()
	return p.WriteFile(name, contents)
}

// WriteEnvValues writes a dotenv file with one KEY=value line per entry, sorted.
func (p *ProjectDir) WriteEnvValues(name string, values map[string]string) string {
	p.t.Helper()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k + "=" + values[k] + "\n")
	}
	return p.WriteFile(name, b.String())
}

// WriteSecret writes one file per secret under secrets/, as container
// runtimes mount them.
func (p *ProjectDir) WriteSecret(key, value string) string {
	p.t.Helper()
	return p.WriteFile(filepath.Join("secrets", key), value)
}

// SecretsDir returns the path of the secrets directory.
func (p *ProjectDir) SecretsDir() string {
	return p.Path("secrets")
}

// ReadFile returns the contents of a file relative to the root.
func (p *ProjectDir) ReadFile(name string) string {
	p.t.Helper()

	data, err := os.ReadFile(p.Path(name))
	if err != nil {
		p.t.Fatalf("Failed to read %s: %v", name, err)
	}
	return string(data)
}
