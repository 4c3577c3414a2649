// Package planfile loads hand-written execution graphs from HCL, YAML or JSON
// files so they can be run without the planner.
package planfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/jit/internal/graph"
	"github.com/ShayCichocki/jit/pkg/models"
)

// Format identifies a graph file encoding.
type Format string

const (
	FormatHCL  Format = "hcl"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks a format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return FormatHCL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported graph file extension %q (want .hcl, .yaml, .yml or .json)", filepath.Ext(path))
	}
}

// hclGraphFile is the top-level structure of an HCL graph file.
//
//	subtask "get_weather" {
//	  tools        = ["get_weather"]
//	  instructions = "Get the weather in ${var.city}"
//	}
type hclGraphFile struct {
	Subtasks []*hclSubtask `hcl:"subtask,block"`
}

type hclSubtask struct {
	ID           string   `hcl:"id,label"`
	Tools        []string `hcl:"tools,optional"`
	Instructions string   `hcl:"instructions"`
	DependsOn    []string `hcl:"depends_on,optional"`
	Condition    string   `hcl:"condition,optional"`
}

// Load reads, decodes and validates a graph file. vars are exposed to HCL
// expressions as var.<name>; the process environment is exposed as env.<NAME>.
func Load(path string, vars map[string]string) (*models.ExecutionGraph, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	return Parse(data, path, format, vars)
}

// Parse decodes and validates graph source. filename is used in diagnostics.
func Parse(data []byte, filename string, format Format, vars map[string]string) (*models.ExecutionGraph, error) {
	var (
		eg  *models.ExecutionGraph
		err error
	)
	switch format {
	case FormatHCL:
		eg, err = parseHCL(data, filename, vars)
	case FormatYAML:
		eg = &models.ExecutionGraph{}
		if err = yaml.Unmarshal(data, eg); err != nil {
			err = fmt.Errorf("failed to decode YAML graph %s: %w", filename, err)
		}
	case FormatJSON:
		eg = &models.ExecutionGraph{}
		if err = json.Unmarshal(data, eg); err != nil {
			err = fmt.Errorf("failed to decode JSON graph %s: %w", filename, err)
		}
	default:
		err = fmt.Errorf("unknown graph format %q", format)
	}
	if err != nil {
		return nil, err
	}

	if eg.Len() == 0 {
		return nil, fmt.Errorf("graph file %s defines no subtasks", filename)
	}
	if err := graph.Validate(eg); err != nil {
		return nil, fmt.Errorf("invalid graph %s: %w", filename, err)
	}
	return eg, nil
}

func parseHCL(data []byte, filename string, vars map[string]string) (*models.ExecutionGraph, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclGraphFile
	diags = gohcl.DecodeBody(file.Body, EvalContext(vars), &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	eg := &models.ExecutionGraph{Subtasks: make([]models.Subtask, 0, len(parsed.Subtasks))}
	for _, s := range parsed.Subtasks {
		eg.Subtasks = append(eg.Subtasks, models.Subtask{
			ID:           s.ID,
			Tools:        s.Tools,
			Instructions: s.Instructions,
			DependsOn:    s.DependsOn,
			Condition:    s.Condition,
		})
	}
	return eg, nil
}

// EvalContext exposes vars as var.<name> and the environment as env.<NAME>.
func EvalContext(vars map[string]string) *hcl.EvalContext {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && hclsyntax.ValidIdentifier(k) {
			env[k] = v
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": stringMap(vars),
			"env": stringMap(env),
		},
	}
}

func stringMap(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.StringVal(v)
	}
	return cty.MapVal(vals)
}
