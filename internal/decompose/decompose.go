// Package decompose turns a user request into a routing decision and, on the
// agent path, an execution graph of subtasks.
package decompose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/pkg/models"
)

// ErrNoJSON indicates a model response did not contain a JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

// FallbackSubtaskID names the single subtask planned when every model fails.
const FallbackSubtaskID = "fallback"

// Completer makes a single tool-free model call.
type Completer interface {
	Complete(ctx context.Context, model, system, prompt string) (string, error)
}

// Planner builds execution graphs for agent-path requests.
type Planner struct {
	completer Completer
	chain     *engine.Chain
	debugLog  func(format string, args ...interface{})
}

// NewPlanner creates a planner that walks models in order. opts bound and
// retry each call.
func NewPlanner(completer Completer, models []string, opts ...engine.ChainOption) *Planner {
	return &Planner{
		completer: completer,
		chain:     engine.NewChain(models, opts...),
		debugLog:  func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (p *Planner) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		p.debugLog = fn
	}
}

// Plan asks each model in turn for an execution graph. A response that does
// not parse or validate counts as a failed model. When every model fails the
// planner returns FallbackGraph. Only context cancellation is returned as an
// error.
func (p *Planner) Plan(ctx context.Context, request string, toolNames []string, history string) (*models.ExecutionGraph, error) {
	system := PlannerInstructions(toolNames, history)
	validator := NewValidator(toolNames)

	var plan *models.ExecutionGraph
	_, err := p.chain.Run(ctx, "planner", func(ctx context.Context, model string) (string, error) {
		response, err := p.completer.Complete(ctx, model, system, request)
		if err != nil {
			p.debugLog("[planner] model %s failed: %v", model, err)
			return "", err
		}

		eg, err := ParsePlan(response)
		if err != nil {
			p.debugLog("[planner] model %s returned an unusable plan: %v", model, err)
			return "", engine.Permanent(err)
		}

		result := validator.Validate(eg)
		for _, w := range result.Warnings {
			p.debugLog("[planner] warning: %s", w)
		}
		if !result.Valid {
			p.debugLog("[planner] model %s returned an invalid plan: %s", model, strings.Join(result.Errors, "; "))
			return "", engine.Permanent(fmt.Errorf("invalid plan: %s", strings.Join(result.Errors, "; ")))
		}

		p.debugLog("[planner] model %s planned %d subtasks: %v", model, eg.Len(), eg.IDs())
		plan = eg
		return response, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		p.debugLog("[planner] all models failed, returning fallback plan")
		return FallbackGraph(), nil
	}
	return plan, nil
}

// FallbackGraph is the plan used when no model produced a usable one.
func FallbackGraph() *models.ExecutionGraph {
	return &models.ExecutionGraph{Subtasks: []models.Subtask{{
		ID:           FallbackSubtaskID,
		Tools:        []string{},
		Instructions: "Acknowledge the request and explain that you're having technical difficulties processing it.",
	}}}
}

// PlannerInstructions renders the planner system prompt.
func PlannerInstructions(toolNames []string, history string) string {
	toolsDesc := "No tools available"
	if len(toolNames) > 0 {
		lines := make([]string, len(toolNames))
		for i, name := range toolNames {
			lines[i] = "- " + name
		}
		toolsDesc = strings.Join(lines, "\n")
	}

	instructions := fmt.Sprintf(plannerPrompt, toolsDesc)
	if history != "" {
		instructions = fmt.Sprintf(plannerContextPrompt, history) + instructions
	}
	return instructions
}

// ParsePlan decodes the first JSON object in a response into an execution graph.
func ParsePlan(response string) (*models.ExecutionGraph, error) {
	var eg models.ExecutionGraph
	if err := decodeFirstObject(response, &eg); err != nil {
		return nil, err
	}
	if len(eg.Subtasks) == 0 {
		return nil, fmt.Errorf("empty subtask list returned")
	}
	return &eg, nil
}

// decodeFirstObject decodes the JSON object starting at the first '{' and
// ignores anything after it, such as closing code fences.
func decodeFirstObject(response string, v interface{}) error {
	start := strings.Index(response, "{")
	if start == -1 {
		preview := response
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return fmt.Errorf("%w (got %d chars): %q", ErrNoJSON, len(response), preview)
	}
	if err := json.NewDecoder(strings.NewReader(response[start:])).Decode(v); err != nil {
		return fmt.Errorf("unmarshal JSON: %w", err)
	}
	return nil
}
