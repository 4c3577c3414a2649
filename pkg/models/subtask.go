// Package models defines the data types shared between the planner, the graph
// engine and the transports.
package models

// Subtask represents one unit of work in an execution graph.
type Subtask struct {
	// ID is the unique identifier for this subtask within its graph.
	ID string `json:"id" yaml:"id"`
	// Tools lists the tool names this subtask needs. Empty means no restriction.
	Tools []string `json:"tools" yaml:"tools"`
	// Instructions tells the reasoning backend what to do.
	Instructions string `json:"instructions" yaml:"instructions"`
	// DependsOn lists subtask IDs that must finish before this subtask.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Condition is an optional predicate over prior results, e.g.
	// "get_weather contains 'rain'".
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// HasCondition returns true if the subtask is gated by a condition.
func (s Subtask) HasCondition() bool {
	return s.Condition != ""
}

// ExecutionGraph is the ordered set of subtasks produced for one request.
type ExecutionGraph struct {
	Subtasks []Subtask `json:"subtasks" yaml:"subtasks"`
}

// Len returns the number of subtasks in the graph.
func (g *ExecutionGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Subtasks)
}

// IDs returns subtask IDs in graph order.
func (g *ExecutionGraph) IDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, len(g.Subtasks))
	for i, s := range g.Subtasks {
		ids[i] = s.ID
	}
	return ids
}

// Lookup returns the subtask with the given ID.
func (g *ExecutionGraph) Lookup(id string) (Subtask, bool) {
	if g == nil {
		return Subtask{}, false
	}
	for _, s := range g.Subtasks {
		if s.ID == id {
			return s, true
		}
	}
	return Subtask{}, false
}

// ToolNames returns every tool name referenced by the graph, deduplicated,
// in first-seen order.
func (g *ExecutionGraph) ToolNames() []string {
	if g == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, s := range g.Subtasks {
		for _, t := range s.Tools {
			if !seen[t] {
				seen[t] = true
				names = append(names, t)
			}
		}
	}
	return names
}
