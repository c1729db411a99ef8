package sourcecontrol

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// MockExecutor records commands and replays configured responses.
// It is exported so that packages built on top of sources can script them.
type MockExecutor struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     []ExecutorCall
}

// MockResponse is returned once for the first command line starting with Prefix.
type MockResponse struct {
	Prefix string
	Output []byte
	Err    error
}

// ExecutorCall records a command invocation.
type ExecutorCall struct {
	Dir  string
	Name string
	Args []string
}

// CommandLine returns the call as a single space-separated string.
func (c ExecutorCall) CommandLine() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// NewMockExecutor creates an executor with no scripted responses.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// AddResponse scripts a single response for command lines starting with prefix.
func (m *MockExecutor) AddResponse(prefix string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, MockResponse{Prefix: prefix, Output: output, Err: err})
}

// Run implements CommandExecutor.
func (m *MockExecutor) Run(_ context.Context, dir string, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := ExecutorCall{Dir: dir, Name: name, Args: args}
	m.calls = append(m.calls, call)

	line := call.CommandLine()
	for i, r := range m.responses {
		if strings.HasPrefix(line, r.Prefix) {
			m.responses = append(m.responses[:i], m.responses[i+1:]...)
			return r.Output, r.Err
		}
	}

	return nil, errors.New("no mock response configured for: " + line)
}

// Calls returns a copy of all recorded calls.
func (m *MockExecutor) Calls() []ExecutorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ExecutorCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// MustGetLastCall returns the last recorded call and fails the test if there is none.
func (m *MockExecutor) MustGetLastCall(t *testing.T) ExecutorCall {
	t.Helper()
	calls := m.Calls()
	if len(calls) == 0 {
		t.Fatal("Expected at least one command call")
	}
	return calls[len(calls)-1]
}
