package decompose

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/internal/graph"
	"github.com/ShayCichocki/jit/pkg/models"
)

// ValidationResult contains the results of validating a plan.
type ValidationResult struct {
	Valid          bool
	Errors         []string
	Warnings       []string
	SuggestedFixes map[string]string // subtaskID -> suggested fix
	// Parallelism is the width of the widest dependency level.
	Parallelism int
}

// Validator checks plans against graph structure and the available tools.
type Validator struct {
	tools map[string]bool
	names []string
}

// NewValidator creates a validator for the given tool names. With no tool
// names, tool references are not checked.
func NewValidator(toolNames []string) *Validator {
	tools := make(map[string]bool, len(toolNames))
	for _, name := range toolNames {
		tools[name] = true
	}
	return &Validator{tools: tools, names: toolNames}
}

// Validate performs structural validation plus advisory checks. Only
// structural problems make a plan invalid.
func (v *Validator) Validate(eg *models.ExecutionGraph) ValidationResult {
	result := ValidationResult{
		Valid:          true,
		Errors:         []string{},
		Warnings:       []string{},
		SuggestedFixes: make(map[string]string),
	}

	if eg.Len() == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "plan has no subtasks")
		return result
	}

	g := graph.New()
	if err := g.Build(eg); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid dependency graph: %v", err))
		return result
	}
	if levels, err := g.Levels(); err == nil {
		for _, level := range levels {
			if len(level) > result.Parallelism {
				result.Parallelism = len(level)
			}
		}
	}

	v.validateTools(eg, &result)
	v.validateSubtaskStructure(eg, &result)
	v.validateConditions(eg, &result)

	return result
}

// validateTools warns about tool names no provider exposes.
func (v *Validator) validateTools(eg *models.ExecutionGraph, result *ValidationResult) {
	if len(v.tools) == 0 {
		return
	}
	for _, s := range eg.Subtasks {
		for _, tool := range s.Tools {
			if v.tools[tool] {
				continue
			}
			if suggested := v.findSimilarTool(tool); suggested != "" {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Subtask '%s': Unknown tool '%s'. Did you mean '%s'?", s.ID, tool, suggested))
				result.SuggestedFixes[s.ID] = fmt.Sprintf("Change tool '%s' to '%s'", tool, suggested)
			} else {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Subtask '%s': Unknown tool '%s' (all providers will be offered)", s.ID, tool))
			}
		}
	}
}

// validateSubtaskStructure checks the fields a backend needs.
func (v *Validator) validateSubtaskStructure(eg *models.ExecutionGraph, result *ValidationResult) {
	for _, s := range eg.Subtasks {
		if strings.TrimSpace(s.Instructions) == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Subtask '%s': Missing instructions", s.ID))
		}
		if len(s.ID) > 100 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Subtask '%s...': ID is very long (%d chars)", s.ID[:50], len(s.ID)))
		}
	}
}

// validateConditions warns when a condition reads a subtask that is not one
// of its dependencies, since that result may not exist yet when it is checked.
func (v *Validator) validateConditions(eg *models.ExecutionGraph, result *ValidationResult) {
	for _, s := range eg.Subtasks {
		if !s.HasCondition() {
			continue
		}
		ref := engine.ConditionReference(s.Condition)
		if ref == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Subtask '%s': Condition %q is not recognized and always passes", s.ID, s.Condition))
			continue
		}
		isDep := false
		for _, dep := range s.DependsOn {
			if dep == ref {
				isDep = true
				break
			}
		}
		if !isDep {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Subtask '%s': Condition reads '%s' which is not in depends_on", s.ID, ref))
			result.SuggestedFixes[s.ID] = fmt.Sprintf("Add '%s' to depends_on", ref)
		}
	}
}

// findSimilarTool attempts to find a known tool name for a typo.
func (v *Validator) findSimilarTool(name string) string {
	bestMatch := ""
	bestScore := 0
	for _, candidate := range v.names {
		score := similarityScore(name, candidate)
		if score > bestScore && score > 50 { // At least 50% similar
			bestScore = score
			bestMatch = candidate
		}
	}
	return bestMatch
}

// similarityScore calculates a simple similarity score between two strings (0-100).
func similarityScore(s1, s2 string) int {
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)

	if s1 == s2 {
		return 100
	}
	if s1 == "" || s2 == "" {
		return 0
	}
	if strings.Contains(s2, s1) || strings.Contains(s1, s2) {
		return 80
	}

	commonPrefix := 0
	minLen := len(s1)
	if len(s2) < minLen {
		minLen = len(s2)
	}
	for i := 0; i < minLen; i++ {
		if s1[i] != s2[i] {
			break
		}
		commonPrefix++
	}
	return (commonPrefix * 100) / minLen
}
