// Package envfile renders and maintains the vaultenv managed block inside a
// dotenv file. Content outside the block is never touched.
package envfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

const (
	StartMarker = "# start managed by vaultenv"
	EndMarker   = "# end managed by vaultenv"
)

// ErrUnterminatedBlock is returned when a start marker has no matching end marker
var ErrUnterminatedBlock = errors.New("found '" + StartMarker + "' without a matching '" + EndMarker + "'")

var managedBlock = regexp.MustCompile(`(?ms)^` + regexp.QuoteMeta(StartMarker) + `\n.*?^` + regexp.QuoteMeta(EndMarker) + `\s*\n?`)

// RenderBlock renders values between the markers, one KEY=value per line in key order
func RenderBlock(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys)+2)
	lines = append(lines, StartMarker)
	for _, k := range keys {
		lines = append(lines, k+"="+Quote(values[k]))
	}
	lines = append(lines, EndMarker)
	return strings.Join(lines, "\n")
}

// Quote formats value for the right-hand side of a dotenv assignment.
// Plain values stay bare so existing files diff cleanly.
func Quote(value string) string {
	if value == "" {
		return `""`
	}

	if strings.Contains(value, "\n") {
		escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(value)
		return `"` + escaped + `"`
	}

	needsQuotes := strings.ContainsAny(value, `"'#`) || strings.IndexFunc(value, unicode.IsSpace) >= 0
	if needsQuotes {
		escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
		return `"` + escaped + `"`
	}
	return value
}

// Upsert replaces every managed block in existing with block. When existing
// has other content, the block is appended after one blank line.
func Upsert(existing, block string) (string, error) {
	if strings.Contains(existing, StartMarker) && !strings.Contains(existing, EndMarker) {
		return "", fmt.Errorf("%w. Resolve manually and retry", ErrUnterminatedBlock)
	}

	remainder := managedBlock.ReplaceAllLiteralString(existing, "")
	remainder = strings.TrimRightFunc(remainder, unicode.IsSpace)
	if remainder != "" {
		return remainder + "\n\n" + block + "\n", nil
	}
	return block + "\n", nil
}

// Managed parses the values inside the first managed block of contents.
// It returns an empty map when there is no block.
func Managed(contents string) (map[string]string, error) {
	match := managedBlock.FindString(contents)
	values := make(map[string]string)
	if match == "" {
		return values, nil
	}

	lines := strings.Split(strings.TrimRight(match, "\n"), "\n")
	for i, line := range lines {
		if i == 0 || i == len(lines)-1 {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, raw, ok := strings.Cut(trimmed, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("failed to parse managed block: line %d is not KEY=value", i+1)
		}
		value, err := Unquote(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse managed block: %s: %w", key, err)
		}
		values[key] = value
	}
	return values, nil
}

// Unquote reverses Quote. Bare values are returned unchanged; no variable
// expansion is done.
func Unquote(raw string) (string, error) {
	if !strings.HasPrefix(raw, `"`) {
		return raw, nil
	}
	if len(raw) < 2 || !strings.HasSuffix(raw, `"`) {
		return "", fmt.Errorf("unterminated quoted value %s", raw)
	}

	inner := raw[1 : len(raw)-1]
	var b strings.Builder
	b.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' {
			if c == '"' {
				return "", fmt.Errorf("unescaped quote in %s", raw)
			}
			b.WriteByte(c)
			continue
		}
		if i+1 == len(inner) {
			return "", fmt.Errorf("dangling escape in %s", raw)
		}
		i++
		switch inner[i] {
		case 'n':
			b.WriteByte('\n')
		case '\\', '"':
			b.WriteByte(inner[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(inner[i])
		}
	}
	return b.String(), nil
}

// Read returns the contents of path, or "" when it does not exist
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// Write creates missing parent directories and replaces path atomically.
// An existing file keeps its permissions; new files get perm.
func Write(path, contents string, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(contents); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
