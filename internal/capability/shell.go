package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/jit/internal/exec"
)

const defaultShellTimeout = 2 * time.Minute

// ShellProvider runs bash commands in a working directory.
type ShellProvider struct {
	workDir string
	runner  exec.CommandRunner
}

// NewShellProvider creates a shell provider.
func NewShellProvider(workDir string, runner exec.CommandRunner) *ShellProvider {
	return &ShellProvider{workDir: workDir, runner: runner}
}

// Name implements Provider.
func (p *ShellProvider) Name() string { return "shell" }

// ToolNames implements Provider.
func (p *ShellProvider) ToolNames() []string { return []string{"Bash"} }

// Tools implements Provider.
func (p *ShellProvider) Tools() []ToolSpec {
	return []ToolSpec{{
		Name:        "Bash",
		Description: "Execute a bash command and return its output.",
		Properties: map[string]interface{}{
			"command": prop("string", "The bash command to execute"),
			"timeout": prop("integer", "Timeout in milliseconds (optional, default 120000)"),
		},
		Required: []string{"command"},
	}}
}

// Invoke implements Provider.
func (p *ShellProvider) Invoke(ctx context.Context, tool string, args json.RawMessage) (Result, error) {
	if tool != "Bash" {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}

	var in struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return errorResult("Invalid parameters: %v", err), nil
	}

	timeout := defaultShellTimeout
	if in.Timeout > 0 {
		timeout = time.Duration(in.Timeout) * time.Millisecond
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := p.runner.RunShell(runCtx, p.workDir, in.Command)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return errorResult("Command timed out after %v:\n%s", timeout, out), nil
		}
		return errorResult("%s\nError: %v", out, err), nil
	}
	return Result{Content: truncate(string(out))}, nil
}

var _ Provider = (*ShellProvider)(nil)
