// Package testutil provides testing utilities for vaultenv.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	osexec "os/exec"
	"strings"
	"sync"

	"github.com/systmms/vaultenv/pkg/exec"
)

var _ exec.CommandExecutor = (*MockCommandExecutor)(nil)

// MockCommandExecutor provides a configurable mock for testing CLI-based vaults.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to their mock responses.
	// Key format: "command arg1 arg2" (space-separated command and args)
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// RecordedCalls stores all calls made to Execute for verification.
	RecordedCalls []RecordedCall

	// StrictMode causes Execute to fail if no matching response is found.
	StrictMode bool
}

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout []byte
	Stderr []byte
	Err    error
	// Block makes Execute wait for ctx to be done and return its error
	Block bool
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
	Context context.Context
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string]MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	resp, err := m.respond(ctx, name, args)
	if err != nil {
		return nil, nil, err
	}
	if resp.Block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	return resp.Stdout, resp.Stderr, resp.Err
}

func (m *MockCommandExecutor) respond(ctx context.Context, name string, args []string) (MockResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command: name,
		Args:    append([]string(nil), args...),
		Context: ctx,
	})

	key := buildKey(name, args)

	if resp, ok := m.Responses[key]; ok {
		return resp, nil
	}

	// Longest matching prefix wins so lookups are deterministic
	best := ""
	for pattern := range m.Responses {
		if matchesPattern(key, pattern) && len(pattern) > len(best) {
			best = pattern
		}
	}
	if best != "" {
		return m.Responses[best], nil
	}

	if m.DefaultResponse != nil {
		return *m.DefaultResponse, nil
	}

	if m.StrictMode {
		return MockResponse{}, fmt.Errorf("mock: no response configured for command: %s", key)
	}

	return MockResponse{Stdout: []byte{}, Stderr: []byte{}}, nil
}

func buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// matchesPattern checks if the command key starts with the pattern.
// A trailing "*" is accepted and ignored.
func matchesPattern(key, pattern string) bool {
	return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
}

// AddResponse registers a mock response for a specific command pattern.
func (m *MockCommandExecutor) AddResponse(commandPattern string, response MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandPattern] = response
}

// AddJSONResponse is a convenience method to add a JSON response.
func (m *MockCommandExecutor) AddJSONResponse(commandPattern string, jsonData string) {
	m.AddResponse(commandPattern, MockResponse{
		Stdout: []byte(jsonData),
		Stderr: []byte{},
	})
}

// AddErrorResponse adds a failing response that writes errMsg to stderr.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, errMsg string, exitCode int) {
	m.AddResponse(commandPattern, MockResponse{
		Stdout: []byte{},
		Stderr: []byte(errMsg),
		Err:    fmt.Errorf("exit status %d", exitCode),
	})
}

// AddNotFoundResponse makes the command fail as if the executable was not in PATH.
func (m *MockCommandExecutor) AddNotFoundResponse(commandPattern string) {
	name := strings.Fields(commandPattern)[0]
	m.AddResponse(commandPattern, MockResponse{
		Err: &osexec.Error{Name: name, Err: osexec.ErrNotFound},
	})
}

// GetCalls returns all recorded calls matching the given command name.
func (m *MockCommandExecutor) GetCalls(commandName string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []RecordedCall
	for _, call := range m.RecordedCalls {
		if call.Command == commandName {
			matches = append(matches, call)
		}
	}
	return matches
}

// CallCount returns the number of times Execute was called.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// Reset clears all recorded calls and responses.
func (m *MockCommandExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = make(map[string]MockResponse)
	m.RecordedCalls = make([]RecordedCall, 0)
	m.DefaultResponse = nil
}

// AssertCalled verifies that a specific command was called at least once.
func (m *MockCommandExecutor) AssertCalled(t interface{ Error(args ...interface{}) }, commandName string) bool {
	calls := m.GetCalls(commandName)
	if len(calls) == 0 {
		t.Error("expected command", commandName, "to be called, but it was not")
		return false
	}
	return true
}

// AssertNotCalled verifies that a specific command was never called.
func (m *MockCommandExecutor) AssertNotCalled(t interface{ Error(args ...interface{}) }, commandName string) bool {
	calls := m.GetCalls(commandName)
	if len(calls) > 0 {
		t.Error("expected command", commandName, "to not be called, but it was called", len(calls), "times")
		return false
	}
	return true
}

// AssertCallCount verifies the exact number of times a command was called.
func (m *MockCommandExecutor) AssertCallCount(t interface{ Error(args ...interface{}) }, commandName string, expected int) bool {
	calls := m.GetCalls(commandName)
	if len(calls) != expected {
		t.Error("expected command", commandName, "to be called", expected, "times, but was called", len(calls), "times")
		return false
	}
	return true
}

// OnePasswordField is one field of a mocked 1Password item
type OnePasswordField struct {
	Label string
	Type  string
	Value interface{}
}

// OnePasswordMockResponses provides pre-configured responses for the 1Password CLI.
type OnePasswordMockResponses struct{}

// AccountGet returns a mock response for op account get.
func (OnePasswordMockResponses) AccountGet() MockResponse {
	return MockResponse{
		Stdout: []byte(`{
			"id": "ABCD123",
			"name": "Engineering",
			"domain": "my.1password.com",
			"type": "BUSINESS",
			"state": "ACTIVE",
			"created_at": "2024-01-01T00:00:00Z"
		}`),
	}
}

// NotSignedIn returns the failure op prints without a session.
func (OnePasswordMockResponses) NotSignedIn() MockResponse {
	return MockResponse{
		Stderr: []byte("[ERROR] 2024/01/15 10:30:00 You are not currently signed in. Please run `op signin --help` for instructions\n"),
		Err:    fmt.Errorf("exit status 1"),
	}
}

// Item returns a mock `op item get --format json` response.
func (OnePasswordMockResponses) Item(id, title string, fields ...OnePasswordField) MockResponse {
	type field struct {
		ID    string      `json:"id"`
		Type  string      `json:"type"`
		Label string      `json:"label"`
		Value interface{} `json:"value"`
	}
	doc := struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Category string  `json:"category"`
		Fields   []field `json:"fields"`
	}{ID: id, Title: title, Category: "API_CREDENTIAL", Fields: []field{}}

	for i, f := range fields {
		typ := f.Type
		if typ == "" {
			typ = "CONCEALED"
		}
		doc.Fields = append(doc.Fields, field{
			ID:    fmt.Sprintf("f%d", i),
			Type:  typ,
			Label: f.Label,
			Value: f.Value,
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return MockResponse{Stdout: data}
}
