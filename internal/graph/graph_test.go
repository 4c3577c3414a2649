package graph

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/ShayCichocki/jit/pkg/models"
)

func graphOf(subtasks ...models.Subtask) *models.ExecutionGraph {
	return &models.ExecutionGraph{Subtasks: subtasks}
}

func TestNewDependencyGraph(t *testing.T) {
	g := New()
	if g == nil {
		t.Fatal("expected non-nil graph")
	}
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got size %d", g.Size())
	}
}

func TestGraphBuildWithDependencies(t *testing.T) {
	g := New()
	err := g.Build(graphOf(
		models.Subtask{ID: "a"},
		models.Subtask{ID: "b", DependsOn: []string{"a"}},
		models.Subtask{ID: "c", DependsOn: []string{"a", "b"}},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps := g.GetDependencies("c"); len(deps) != 2 {
		t.Errorf("expected 2 dependencies for c, got %d", len(deps))
	}
	if got, want := g.GetDependents("a"), []string{"b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetDependents(a) = %v, want %v", got, want)
	}
	if got, want := g.Roots(), []string{"a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Roots() = %v, want %v", got, want)
	}
	if s, ok := g.GetSubtask("b"); !ok || s.ID != "b" {
		t.Errorf("GetSubtask(b) = %v, %v", s, ok)
	}
}

func TestGraphBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		graph   *models.ExecutionGraph
		wantErr error
		wantMsg string
	}{
		{
			name:    "unknown dependency",
			graph:   graphOf(models.Subtask{ID: "a", DependsOn: []string{"ghost"}}),
			wantMsg: "unknown subtask ghost",
		},
		{
			name:    "duplicate id",
			graph:   graphOf(models.Subtask{ID: "a"}, models.Subtask{ID: "a"}),
			wantErr: ErrDuplicateID,
		},
		{
			name:    "self dependency",
			graph:   graphOf(models.Subtask{ID: "a", DependsOn: []string{"a"}}),
			wantErr: ErrSelfDependency,
		},
		{
			name: "two node cycle",
			graph: graphOf(
				models.Subtask{ID: "a", DependsOn: []string{"b"}},
				models.Subtask{ID: "b", DependsOn: []string{"a"}},
			),
			wantErr: ErrCycleDetected,
		},
		{
			name: "three node cycle",
			graph: graphOf(
				models.Subtask{ID: "a", DependsOn: []string{"b"}},
				models.Subtask{ID: "b", DependsOn: []string{"c"}},
				models.Subtask{ID: "c", DependsOn: []string{"a"}},
			),
			wantErr: ErrCycleDetected,
		},
		{
			name:    "empty id",
			graph:   graphOf(models.Subtask{ID: ""}),
			wantMsg: "empty id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.graph)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLevelsDiamond(t *testing.T) {
	g := New()
	if err := g.Build(graphOf(
		models.Subtask{ID: "d", DependsOn: []string{"b", "c"}},
		models.Subtask{ID: "a"},
		models.Subtask{ID: "c", DependsOn: []string{"a"}},
		models.Subtask{ID: "b", DependsOn: []string{"a"}},
	)); err != nil {
		t.Fatalf("Build: %v", err)
	}

	levels, err := g.Levels()
	if err != nil {
		t.Fatalf("Levels: %v", err)
	}
	want := [][]string{{"a"}, {"c", "b"}, {"d"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Levels() = %v, want %v", levels, want)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	if got, want := order, []string{"a", "c", "b", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TopologicalSort() = %v, want %v", got, want)
	}
}

func TestTopologicalSortIsStable(t *testing.T) {
	eg := graphOf(
		models.Subtask{ID: "fetch_a"},
		models.Subtask{ID: "fetch_b"},
		models.Subtask{ID: "fetch_c"},
		models.Subtask{ID: "merge", DependsOn: []string{"fetch_c", "fetch_a"}},
	)

	var first []string
	for i := 0; i < 20; i++ {
		g := New()
		if err := g.Build(eg); err != nil {
			t.Fatalf("Build: %v", err)
		}
		order, err := g.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort: %v", err)
		}
		if first == nil {
			first = order
			continue
		}
		if !reflect.DeepEqual(order, first) {
			t.Fatalf("order changed between runs: %v vs %v", order, first)
		}
	}
}

func TestHasCycleFalseForLinearChain(t *testing.T) {
	g := New()
	if err := g.Build(graphOf(
		models.Subtask{ID: "a"},
		models.Subtask{ID: "b", DependsOn: []string{"a"}},
		models.Subtask{ID: "c", DependsOn: []string{"b"}},
	)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if g.HasCycle() {
		t.Error("linear chain reported as cyclic")
	}
}

func TestSetDebugLog(t *testing.T) {
	var lines []string
	g := New()
	g.SetDebugLog(func(format string, args ...interface{}) {
		lines = append(lines, format)
	})
	g.SetDebugLog(nil) // ignored
	if err := g.Build(graphOf(models.Subtask{ID: "a"})); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(lines) == 0 {
		t.Error("expected debug log lines")
	}
}
