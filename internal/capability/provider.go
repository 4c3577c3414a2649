// Package capability defines tool providers and the registry that indexes
// them by tool name.
package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownTool is returned when a provider is asked to run a tool it does not expose.
var ErrUnknownTool = errors.New("unknown tool")

// ErrDuplicateProvider is returned by Load when two providers share a name.
var ErrDuplicateProvider = errors.New("duplicate provider name")

// ToolSpec describes one invocable tool.
type ToolSpec struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description" yaml:"description"`
	Properties  map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string               `json:"required,omitempty" yaml:"required,omitempty"`
}

// Result is the outcome of a tool call. IsError marks failures the model
// should see, as opposed to infrastructure errors returned from Invoke.
type Result struct {
	Content string
	IsError bool
}

// Provider exposes a named set of invocable tools.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Name identifies the provider within a registry.
	Name() string
	// ToolNames lists the tools this provider can run.
	ToolNames() []string
	// Tools returns the tool descriptions handed to the model.
	Tools() []ToolSpec
	// Invoke runs a tool with JSON arguments.
	Invoke(ctx context.Context, tool string, args json.RawMessage) (Result, error)
}

// errorResult formats a tool failure the way the model sees it.
func errorResult(format string, args ...interface{}) Result {
	return Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

// namesOf returns the names of the given specs in order.
func namesOf(specs []ToolSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// truncate caps tool output at maxOutput bytes.
func truncate(s string) string {
	if len(s) > maxOutput {
		return s[:maxOutput] + "\n... (output truncated)"
	}
	return s
}

const maxOutput = 30000
