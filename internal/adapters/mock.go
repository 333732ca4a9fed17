package adapters

import (
	"context"
	"fmt"

	"github.com/smithers-run/smithers/internal/elements"
)

// MockAgent is a scripted, deterministic elements.AgentAdapter for demo runs
// and tests: a stand-in for a live LLM collaborator that produces the same
// output every time instead of a real one that doesn't.
type MockAgent struct {
	// Responses maps a request's Prompt to the output it should "generate".
	// A prompt with no entry falls back to a canned acknowledgement so a
	// demo workflow never has to script every possible prompt.
	Responses map[string]string
	// Progress, if set, is emitted once before the response is returned.
	Progress string
}

// NewMockAgent returns a MockAgent with no scripted responses.
func NewMockAgent() *MockAgent {
	return &MockAgent{Responses: make(map[string]string)}
}

// WithResponse registers a canned output for a given prompt and returns the
// receiver, for chained construction.
func (m *MockAgent) WithResponse(prompt, output string) *MockAgent {
	m.Responses[prompt] = output
	return m
}

func (m *MockAgent) Run(ctx context.Context, req elements.AgentRequest, progress func(elements.AgentProgress)) (elements.AgentResult, error) {
	if err := ctx.Err(); err != nil {
		return elements.AgentResult{}, err
	}
	if progress != nil {
		note := m.Progress
		if note == "" {
			note = "mock-agent: thinking"
		}
		progress(elements.AgentProgress{ToolCall: note})
	}
	if out, ok := m.Responses[req.Prompt]; ok {
		return elements.AgentResult{Output: out, Success: true}, nil
	}
	return elements.AgentResult{Output: fmt.Sprintf("mock-agent: acknowledged %q", req.Prompt), Success: true}, nil
}

// MockVCS is a scripted elements.VCS that fabricates monotonically
// increasing ids instead of shelling out to a real VCS binary.
type MockVCS struct {
	next int
}

// NewMockVCS returns a MockVCS starting its id counter at zero.
func NewMockVCS() *MockVCS {
	return &MockVCS{}
}

func (m *MockVCS) Snapshot(ctx context.Context) (string, error) {
	return m.nextID("snap"), nil
}

func (m *MockVCS) Commit(ctx context.Context, message string) (string, error) {
	return m.nextID("commit"), nil
}

func (m *MockVCS) nextID(prefix string) string {
	m.next++
	return fmt.Sprintf("mock-%s-%03d", prefix, m.next)
}

// MockCommandRunner is a scripted elements.CommandRunner that returns a
// canned result instead of invoking os/exec, for workflows that exercise
// the Command leaf without a real subprocess.
type MockCommandRunner struct {
	Result elements.CommandResult
	Err    error
}

// NewMockCommandRunner returns a MockCommandRunner that always succeeds
// with empty output until overridden.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{Result: elements.CommandResult{Success: true}}
}

func (m *MockCommandRunner) Run(ctx context.Context, cmd string, args []string, cwd string, env []string) (elements.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return elements.CommandResult{}, err
	}
	return m.Result, m.Err
}
