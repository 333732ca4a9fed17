package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/smithers-run/smithers/internal/elements"
)

const maxAgentStderrBytes = 4096

// CLIAgent is an AgentAdapter backed by an external agent CLI (e.g. `claude
// -p`), dispatching on AgentRequest.Model: "claude"-prefixed (or empty)
// models run `claude -p`, "opencode"-prefixed models run `opencode run`.
type CLIAgent struct{}

// NewCLIAgent constructs a CLIAgent.
func NewCLIAgent() *CLIAgent { return &CLIAgent{} }

// Run implements elements.AgentAdapter. It does not stream intermediate
// tool calls — CLI agents invoked this way report only a final text
// response — so progress is only invoked once, with the resolved CLI
// command name, before exec.
func (a *CLIAgent) Run(ctx context.Context, req elements.AgentRequest, progress func(elements.AgentProgress)) (elements.AgentResult, error) {
	if err := validatePrompt(req.Prompt); err != nil {
		return elements.AgentResult{}, fmt.Errorf("invalid prompt: %w", err)
	}
	command, args, err := resolveAgentCLI(req)
	if err != nil {
		return elements.AgentResult{}, err
	}
	if progress != nil {
		progress(elements.AgentProgress{ToolCall: command})
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = os.Environ()

	var stdout bytes.Buffer
	stderr := &limitedWriter{maxBytes: maxAgentStderrBytes}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		msg := stderr.buf.String()
		if stderr.buf.Len() >= stderr.maxBytes {
			msg += " (truncated)"
		}
		return elements.AgentResult{Success: false}, fmt.Errorf("agent cli %s failed: %w (stderr: %s)", command, err, msg)
	}

	return elements.AgentResult{Output: strings.TrimSpace(stdout.String()), Success: true}, nil
}

func resolveAgentCLI(req elements.AgentRequest) (string, []string, error) {
	model := strings.ToLower(req.Model)
	switch {
	case strings.HasPrefix(model, "opencode"):
		return "opencode", []string{"run", req.Prompt}, nil
	case strings.HasPrefix(model, "claude"), model == "":
		args := []string{"-p", req.Prompt, "--output-format", "text"}
		if req.SystemPrompt != "" {
			args = append(args, "--append-system-prompt", req.SystemPrompt)
		}
		return "claude", args, nil
	default:
		return "", nil, fmt.Errorf("unknown agent model %q", req.Model)
	}
}

func validatePrompt(s string) error {
	if len(s) == 0 {
		return errors.New("empty prompt")
	}
	if strings.ContainsRune(s, 0) {
		return errors.New("prompt contains null byte")
	}
	return nil
}

// limitedWriter caps writes at maxBytes, silently discarding overflow so a
// runaway CLI's stderr cannot exhaust memory.
type limitedWriter struct {
	buf      bytes.Buffer
	maxBytes int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	originalLen := len(p)
	remaining := w.maxBytes - w.buf.Len()
	if remaining <= 0 {
		return originalLen, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	w.buf.Write(p)
	return originalLen, nil
}
