package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/vaultenv/internal/logging"
)

// TestLogger captures log output for validation in tests.
//
// It wraps a real logging.Logger writing into an in-memory buffer, so tests
// see exactly what users would see on stderr (without color).
//
// Example usage:
//
//	logger := NewTestLogger(t)
//	logger.Info("Synced %s", logging.Secret("password123"))
//
//	logger.AssertContains(t, "[REDACTED]")
//	logger.AssertNotContains(t, "password123")
type TestLogger struct {
	*logging.Logger
	buffer *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// NewTestLogger creates a TestLogger with debug output disabled.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	return NewTestLoggerWithDebug(t, false)
}

// NewTestLoggerWithDebug creates a TestLogger that also captures Debug calls when debug is true.
func NewTestLoggerWithDebug(t *testing.T, debug bool) *TestLogger {
	t.Helper()

	buf := &syncBuffer{}
	return &TestLogger{
		Logger: logging.NewWithWriter(buf, debug, true),
		buffer: buf,
	}
}

// GetOutput returns the captured log output.
func (l *TestLogger) GetOutput() string {
	return l.buffer.String()
}

// Clear discards the captured output.
func (l *TestLogger) Clear() {
	l.buffer.Reset()
}

// AssertContains asserts that the log output contains substr.
func (l *TestLogger) AssertContains(t *testing.T, substr string) {
	t.Helper()
	assert.Contains(t, l.GetOutput(), substr, "Expected log output to contain %q", substr)
}

// AssertNotContains asserts that the log output does not contain substr.
func (l *TestLogger) AssertNotContains(t *testing.T, substr string) {
	t.Helper()
	assert.NotContains(t, l.GetOutput(), substr, "Expected log output to NOT contain %q", substr)
}

// AssertRedacted asserts that secretValue is absent and the [REDACTED] marker is present.
func (l *TestLogger) AssertRedacted(t *testing.T, secretValue string) {
	t.Helper()
	AssertSecretRedacted(t, l.GetOutput(), secretValue)
}

// AssertLogCount asserts how many lines were logged at a level
// ("info", "warn", "error" or "debug").
func (l *TestLogger) AssertLogCount(t *testing.T, level string, count int) {
	t.Helper()

	markers := map[string]string{
		"info":  "✓ ",
		"warn":  "⚠ ",
		"error": "✗ ",
		"debug": "[DEBUG] ",
	}
	marker, ok := markers[level]
	if !ok {
		t.Fatalf("Unknown log level: %s", level)
	}

	actual := 0
	for _, line := range l.Lines() {
		if strings.HasPrefix(line, marker) {
			actual++
		}
	}
	assert.Equal(t, count, actual, "Expected %d %s log messages, got %d", count, level, actual)
}

// AssertEmpty asserts that nothing was logged.
func (l *TestLogger) AssertEmpty(t *testing.T) {
	t.Helper()
	output := l.GetOutput()
	assert.Empty(t, output, "Expected no log output, but got:\n%s", output)
}

// Lines returns the non-empty log lines.
func (l *TestLogger) Lines() []string {
	var out []string
	for _, line := range strings.Split(l.GetOutput(), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
