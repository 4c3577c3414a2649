package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/jit/internal/exec"
)

const defaultCommandTimeout = time.Minute

// CommandProvider runs manifest-declared tools as external commands. The
// tool's JSON arguments are written to the command's stdin.
type CommandProvider struct {
	name        string
	description string
	env         []string
	tools       []CommandTool
	workDir     string
	runner      exec.CommandRunner
}

// NewCommandProvider creates a provider from a manifest entry.
func NewCommandProvider(cfg ProviderConfig, workDir string, runner exec.CommandRunner) *CommandProvider {
	return &CommandProvider{
		name:        cfg.Name,
		description: cfg.Description,
		env:         envList(cfg.Env),
		tools:       cfg.Tools,
		workDir:     workDir,
		runner:      runner,
	}
}

// Name implements Provider.
func (p *CommandProvider) Name() string { return p.name }

// Description returns the manifest description.
func (p *CommandProvider) Description() string { return p.description }

// ToolNames implements Provider.
func (p *CommandProvider) ToolNames() []string { return namesOf(p.Tools()) }

// Tools implements Provider.
func (p *CommandProvider) Tools() []ToolSpec {
	specs := make([]ToolSpec, len(p.tools))
	for i, t := range p.tools {
		specs[i] = t.ToolSpec
	}
	return specs
}

// Invoke implements Provider.
func (p *CommandProvider) Invoke(ctx context.Context, tool string, args json.RawMessage) (Result, error) {
	var spec *CommandTool
	for i := range p.tools {
		if p.tools[i].Name == tool {
			spec = &p.tools[i]
			break
		}
	}
	if spec == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	out, err := p.runner.RunCommand(runCtx, exec.Command{
		Name:  spec.Command,
		Args:  spec.Args,
		Dir:   p.workDir,
		Env:   p.env,
		Stdin: args,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return errorResult("%s timed out after %v", tool, timeout), nil
		}
		return errorResult("%s\nError: %v", strings.TrimSpace(string(out)), err), nil
	}
	return Result{Content: truncate(string(out))}, nil
}

var _ Provider = (*CommandProvider)(nil)
