package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/pkg/models"
)

// AgentNamePrefix prefixes the invocation name of every subtask call.
const AgentNamePrefix = "Agent_"

const (
	previousResultsHeader = "\n\nPrevious results you can use:\n"
	completionDirective   = "\n\nComplete this task. Be concise."
)

// FailureMarker is the result recorded for a subtask whose models all failed.
func FailureMarker(id string) string {
	return "Error: Unable to complete subtask " + id
}

// TaskRunner executes one subtask through the agent model chain.
type TaskRunner struct {
	backend  Backend
	resolver *Resolver
	chain    *Chain
}

// NewTaskRunner creates a runner that tries models in order.
func NewTaskRunner(backend Backend, agentModels []string, resolver *Resolver) *TaskRunner {
	return &TaskRunner{
		backend:  backend,
		resolver: resolver,
		chain:    NewChain(agentModels),
	}
}

// PrimaryModel returns the first agent model, or "" if none is configured.
func (r *TaskRunner) PrimaryModel() string {
	if len(r.chain.models) == 0 {
		return ""
	}
	return r.chain.models[0]
}

// Chain returns the agent model chain.
func (r *TaskRunner) Chain() *Chain { return r.chain }

// Run executes s and returns its result text. Model failures never surface as
// errors: an exhausted chain yields FailureMarker(s.ID). The only error is
// the context's, when the caller cancels.
func (r *TaskRunner) Run(ctx context.Context, s models.Subtask, request string, results *ResultSet, providers []capability.Provider) (string, error) {
	selected := r.resolver.Resolve(s, providers)
	instructions := BuildInstructions(s, results)

	out, err := r.chain.Run(ctx, "runner", func(ctx context.Context, model string) (string, error) {
		return r.backend.Invoke(ctx, Invocation{
			Name:         AgentNamePrefix + s.ID,
			Instructions: instructions,
			Request:      request,
			Providers:    selected,
			Model:        model,
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		debugLog("[runner] %s: all models failed", s.ID)
		return FailureMarker(s.ID), nil
	}
	return out, nil
}

// BuildInstructions appends the results of s's dependencies, in dependency
// order, and the completion directive to s's instructions.
func BuildInstructions(s models.Subtask, results *ResultSet) string {
	var deps []string
	for _, dep := range s.DependsOn {
		if text, ok := results.Get(dep); ok {
			deps = append(deps, fmt.Sprintf("[Result from %s]: %s", dep, text))
		}
	}

	instructions := s.Instructions
	if len(deps) > 0 {
		instructions += previousResultsHeader + strings.Join(deps, "\n")
	}
	return instructions + completionDirective
}
