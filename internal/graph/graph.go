// Package graph provides dependency validation and ordering for execution graphs.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ShayCichocki/jit/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrDuplicateID indicates two subtasks share an ID.
var ErrDuplicateID = errors.New("duplicate subtask id")

// ErrSelfDependency indicates a subtask lists itself as a dependency.
var ErrSelfDependency = errors.New("subtask depends on itself")

// DependencyGraph represents a directed acyclic graph of subtask dependencies.
// Subtasks are nodes, and edges represent "depends on" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// order holds subtask IDs in the order they were declared.
	order []string
	// nodes maps subtask ID to the subtask itself.
	nodes map[string]models.Subtask
	// edges maps subtask ID to IDs of subtasks it depends on.
	edges map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]models.Subtask),
		edges:    make(map[string][]string),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from an execution graph.
// Returns an error for duplicate IDs, self references, unknown dependencies, or cycles.
func (g *DependencyGraph) Build(eg *models.ExecutionGraph) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.debugLog("[graph.Build] building graph from %d subtasks", eg.Len())

	if eg == nil {
		return nil
	}

	// First pass: register all subtasks as nodes.
	for _, s := range eg.Subtasks {
		if s.ID == "" {
			return fmt.Errorf("subtask with empty id")
		}
		if _, exists := g.nodes[s.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateID, s.ID)
		}
		g.nodes[s.ID] = s
		g.edges[s.ID] = nil
		g.order = append(g.order, s.ID)
	}

	// Second pass: build edges from DependsOn fields.
	for _, s := range eg.Subtasks {
		for _, depID := range s.DependsOn {
			if depID == s.ID {
				return fmt.Errorf("%w: %s", ErrSelfDependency, s.ID)
			}
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("subtask %s depends on unknown subtask %s", s.ID, depID)
			}
			g.edges[s.ID] = append(g.edges[s.ID], depID)
		}
	}

	g.debugLog("[graph.Build] edges: %v", g.edges)

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// Validate builds a throwaway graph to check an execution graph's structure.
func Validate(eg *models.ExecutionGraph) error {
	return New().Build(eg)
}

// HasCycle returns true if the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked uses depth-first search with coloring to detect back edges.
// Caller must hold g.mu.
func (g *DependencyGraph) hasCycleLocked() bool {
	// 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// Levels groups subtask IDs into dependency levels. Level 0 holds subtasks with
// no dependencies; level n holds subtasks whose deepest dependency sits at level
// n-1. Within a level, IDs keep declaration order. Returns ErrCycleDetected if
// the graph is cyclic.
func (g *DependencyGraph) Levels() ([][]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycleDetected
	}

	placed := make(map[string]bool, len(g.nodes))
	var levels [][]string
	for len(placed) < len(g.order) {
		var level []string
		for _, id := range g.order {
			if placed[id] {
				continue
			}
			ready := true
			for _, depID := range g.edges[id] {
				if !placed[depID] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, id)
			}
		}
		// Mark after the scan so a level never contains its own dependents.
		for _, id := range level {
			placed[id] = true
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// TopologicalSort returns subtask IDs in an order where all dependencies come
// before the subtasks that depend on them. The order is stable: it is the
// concatenation of Levels.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var result []string
	for _, level := range levels {
		result = append(result, level...)
	}
	return result, nil
}

// GetSubtask returns the subtask for a given ID.
func (g *DependencyGraph) GetSubtask(id string) (models.Subtask, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.nodes[id]
	return s, ok
}

// Size returns the number of subtasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of subtasks that the given subtask depends on.
func (g *DependencyGraph) GetDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[id]
}

// GetDependents returns the IDs of subtasks that depend on the given subtask,
// in declaration order.
func (g *DependencyGraph) GetDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, candidate := range g.order {
		for _, depID := range g.edges[candidate] {
			if depID == id {
				dependents = append(dependents, candidate)
				break
			}
		}
	}
	return dependents
}

// Roots returns subtasks with no dependencies, in declaration order.
func (g *DependencyGraph) Roots() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var roots []string
	for _, id := range g.order {
		if len(g.edges[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}
