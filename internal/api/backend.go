package api

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/engine"
)

// DefaultMaxToolIterations bounds the API calls of one tool-using invocation.
const DefaultMaxToolIterations = 20

// ToolCall describes a tool invocation made on the model's behalf.
type ToolCall struct {
	Invocation string
	Tool       string
	Action     string
	Input      json.RawMessage
	IsError    bool
}

// Backend runs subtasks against the Anthropic API, executing tool calls
// through the providers handed to each invocation.
type Backend struct {
	client        *Client
	maxIterations int
	onToolCall    func(ToolCall)
}

// NewBackend creates a backend. maxIterations <= 0 uses DefaultMaxToolIterations.
func NewBackend(client *Client, maxIterations int) *Backend {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxToolIterations
	}
	return &Backend{client: client, maxIterations: maxIterations}
}

// SetToolCallHandler sets a callback invoked after every tool call.
func (b *Backend) SetToolCallHandler(fn func(ToolCall)) {
	b.onToolCall = fn
}

// Invoke implements engine.Backend.
func (b *Backend) Invoke(ctx context.Context, inv engine.Invocation) (string, error) {
	tools, byName := toolParams(inv.Providers)

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(inv.Request)),
	}

	for i := 0; i < b.maxIterations; i++ {
		params := anthropic.MessageNewParams{
			Model:     b.client.ResolveModel(inv.Model),
			MaxTokens: b.client.maxTokens,
			Messages:  messages,
		}
		if inv.Instructions != "" {
			params.System = []anthropic.TextBlockParam{{Text: inv.Instructions}}
		}
		if len(tools) > 0 {
			params.Tools = tools
		}

		resp, err := b.client.inner.Messages.New(ctx, params)
		if err != nil {
			return "", classify(inv.Model, err)
		}
		b.client.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResults []anthropic.ContentBlockParamUnion
		var text strings.Builder

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(variant.Text)
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				result := b.runTool(ctx, inv.Name, byName, variant.Name, variant.Input)
				toolResults = append(toolResults,
					anthropic.NewToolResultBlock(variant.ID, result.Content, result.IsError))
			}
		}

		if resp.StopReason != anthropic.StopReasonToolUse || len(toolResults) == 0 {
			return text.String(), nil
		}

		messages = append(messages,
			anthropic.NewAssistantMessage(assistantBlocks...),
			anthropic.NewUserMessage(toolResults...),
		)
	}

	return "", fmt.Errorf("%s: max tool iterations (%d) reached", inv.Name, b.maxIterations)
}

func (b *Backend) runTool(ctx context.Context, invName string, byName map[string]capability.Provider, tool string, input json.RawMessage) capability.Result {
	var result capability.Result
	if p, ok := byName[tool]; ok {
		var err error
		result, err = p.Invoke(ctx, tool, input)
		if err != nil {
			result = capability.Result{Content: fmt.Sprintf("Tool %s failed: %v", tool, err), IsError: true}
		}
	} else {
		result = capability.Result{Content: fmt.Sprintf("Unknown tool: %s", tool), IsError: true}
	}

	if b.onToolCall != nil {
		b.onToolCall(ToolCall{
			Invocation: invName,
			Tool:       tool,
			Action:     FormatToolAction(tool, input),
			Input:      input,
			IsError:    result.IsError,
		})
	}
	return result
}

// toolParams converts provider tools into API tool definitions. When two
// providers expose the same name, the first one wins.
func toolParams(providers []capability.Provider) ([]anthropic.ToolUnionParam, map[string]capability.Provider) {
	var params []anthropic.ToolUnionParam
	byName := make(map[string]capability.Provider)
	for _, p := range providers {
		for _, spec := range p.Tools() {
			if _, dup := byName[spec.Name]; dup {
				continue
			}
			byName[spec.Name] = p

			properties := spec.Properties
			if properties == nil {
				properties = map[string]interface{}{}
			}
			params = append(params, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        spec.Name,
					Description: anthropic.String(spec.Description),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: properties,
						Required:   spec.Required,
					},
				},
			})
		}
	}
	return params, byName
}

// FormatToolAction returns a short human-readable description of a tool call.
func FormatToolAction(name string, input json.RawMessage) string {
	var p struct {
		FilePath string `json:"file_path"`
		Command  string `json:"command"`
		Pattern  string `json:"pattern"`
		Path     string `json:"path"`
	}
	json.Unmarshal(input, &p)

	switch name {
	case "Read":
		return "Reading " + filepath.Base(p.FilePath)
	case "Write":
		return "Writing " + filepath.Base(p.FilePath)
	case "Edit":
		return "Editing " + filepath.Base(p.FilePath)
	case "Bash":
		cmd, _, _ := strings.Cut(p.Command, " ")
		if len(cmd) > 20 {
			cmd = cmd[:17] + "..."
		}
		return "Running " + cmd
	case "Glob":
		return "Searching " + p.Pattern
	case "Grep":
		pat := p.Pattern
		if len(pat) > 15 {
			pat = pat[:12] + "..."
		}
		return "Grep " + pat
	case "ListDir":
		return "Listing " + p.Path
	default:
		return "Calling " + name
	}
}

var _ engine.Backend = (*Backend)(nil)
