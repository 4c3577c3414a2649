package engine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/graph"
	"github.com/ShayCichocki/jit/pkg/models"
)

func graphOf(subtasks ...models.Subtask) *models.ExecutionGraph {
	return &models.ExecutionGraph{Subtasks: subtasks}
}

func newTestScheduler(backend Backend, opts ...Option) *Scheduler {
	base := []Option{
		WithAgentModels("agent-1", "agent-2"),
		WithSynthesizerModels("synth-1"),
		WithBackOff(zeroBackOff),
	}
	return NewScheduler(backend, append(base, opts...)...)
}

func TestRunDiamondExecutesEachSubtaskOnce(t *testing.T) {
	var mu sync.Mutex
	order := []string{}
	backend := &fakeBackend{respond: func(_ context.Context, inv Invocation) (string, error) {
		if inv.Name == "Synthesizer" {
			return "final", nil
		}
		id := strings.TrimPrefix(inv.Name, "Agent_")
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		return "out-" + id, nil
	}}

	eg := graphOf(
		models.Subtask{ID: "A", Instructions: "root"},
		models.Subtask{ID: "B", DependsOn: []string{"A"}},
		models.Subtask{ID: "C", DependsOn: []string{"A"}},
		models.Subtask{ID: "D", DependsOn: []string{"B", "C"}},
	)
	res := newTestScheduler(backend).Run(context.Background(), eg, "req", nil)

	if res.Output != "final" {
		t.Errorf("Output = %q", res.Output)
	}
	if res.Stalled || res.Cancelled || len(res.Remaining) != 0 {
		t.Errorf("unexpected report: %+v", res)
	}

	counts := map[string]int{}
	pos := map[string]int{}
	for i, id := range order {
		counts[id]++
		pos[id] = i
	}
	for _, id := range []string{"A", "B", "C", "D"} {
		if counts[id] != 1 {
			t.Errorf("%s executed %d times", id, counts[id])
		}
	}
	if pos["D"] < pos["B"] || pos["D"] < pos["C"] || pos["B"] < pos["A"] || pos["C"] < pos["A"] {
		t.Errorf("execution order violates dependencies: %v", order)
	}

	// D sees both upstream results.
	for _, inv := range backend.invocations() {
		if inv.Name == "Agent_D" {
			if !strings.Contains(inv.Instructions, "[Result from B]: out-B") || !strings.Contains(inv.Instructions, "[Result from C]: out-C") {
				t.Errorf("D instructions missing upstream results: %q", inv.Instructions)
			}
		}
	}

	if got, want := strings.Join(res.Completed, ","), "A,B,C,D"; got != want {
		t.Errorf("Completed = %s, want %s", got, want)
	}
}

func TestRunConditionSkipIsIrreversible(t *testing.T) {
	backend := &fakeBackend{respond: func(_ context.Context, inv Invocation) (string, error) {
		switch inv.Name {
		case "Agent_A":
			return "sunny and warm", nil
		case "Synthesizer":
			return "synthesized", nil
		}
		return "ran " + inv.Name, nil
	}}
	rec := &recorder{}

	eg := graphOf(
		models.Subtask{ID: "A"},
		models.Subtask{ID: "X", DependsOn: []string{"A"}, Condition: "A contains 'rain'"},
		models.Subtask{ID: "Y", DependsOn: []string{"A"}, Condition: "A.result contains 'sunny'"},
		models.Subtask{ID: "Z", DependsOn: []string{"X"}},
	)
	res := newTestScheduler(backend, WithEventSink(rec)).Run(context.Background(), eg, "req", nil)

	if backend.callsNamed("Agent_X") != 0 {
		t.Error("X must never run")
	}
	for _, r := range res.Results {
		if r.ID == "X" {
			t.Error("X must have no result")
		}
	}
	if !reflect.DeepEqual(res.Skipped, []string{"X"}) {
		t.Errorf("Skipped = %v", res.Skipped)
	}
	// A skipped dependency counts as completed, so Z still runs.
	if backend.callsNamed("Agent_Z") != 1 {
		t.Error("Z should run after its skipped dependency")
	}
	if len(res.Completed) != 4 || res.Stalled {
		t.Errorf("report = %+v", res)
	}
	if ev := rec.ofType(EventSubtaskSkipped); len(ev) != 1 || ev[0].SubtaskID != "X" {
		t.Errorf("skip events = %+v", ev)
	}
}

func TestRunSkipInSamePassCountsAsCompletion(t *testing.T) {
	backend := &fakeBackend{}
	eg := graphOf(
		models.Subtask{ID: "gate", Condition: "nothing is not empty"},
		models.Subtask{ID: "after", DependsOn: []string{"gate"}},
	)
	res := newTestScheduler(backend).Run(context.Background(), eg, "req", nil)

	if res.Output != "done after" {
		t.Errorf("Output = %q", res.Output)
	}
	if backend.callsNamed("Agent_after") != 1 {
		t.Error("after should run in the same pass that skipped gate")
	}
}

func TestRunSkipOnlyPassDoesNotStall(t *testing.T) {
	backend := &fakeBackend{}
	// after is declared first, so the pass that skips gate finds nothing ready.
	eg := graphOf(
		models.Subtask{ID: "after", DependsOn: []string{"gate"}},
		models.Subtask{ID: "gate", Condition: "nothing is not empty"},
	)
	res := newTestScheduler(backend).Run(context.Background(), eg, "req", nil)

	if res.Stalled || len(res.Remaining) != 0 {
		t.Fatalf("stalled=%v remaining=%v", res.Stalled, res.Remaining)
	}
	if res.Output != "done after" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestRunSingleSubtaskBypassesSynthesizer(t *testing.T) {
	backend := &fakeBackend{respond: func(context.Context, Invocation) (string, error) {
		return "  verbatim answer\n", nil
	}}
	rec := &recorder{}
	res := newTestScheduler(backend, WithEventSink(rec)).Run(context.Background(), graphOf(models.Subtask{ID: "only"}), "req", nil)

	if res.Output != "  verbatim answer\n" {
		t.Errorf("Output = %q", res.Output)
	}
	if backend.callsNamed("Synthesizer") != 0 || len(rec.ofType(EventSynthesizing)) != 0 {
		t.Error("synthesizer must not run for one result")
	}
}

func TestRunIndependentSubtasksRunConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	bothIn := make(chan struct{})
	go func() {
		arrived.Wait()
		close(bothIn)
	}()

	var synthPrompt string
	backend := &fakeBackend{respond: func(_ context.Context, inv Invocation) (string, error) {
		if inv.Name == "Synthesizer" {
			synthPrompt = inv.Request
			return "merged", nil
		}
		arrived.Done()
		select {
		case <-bothIn:
		case <-time.After(5 * time.Second):
			return "", errors.New("subtasks did not overlap")
		}
		if inv.Name == "Agent_slow" {
			time.Sleep(10 * time.Millisecond)
		}
		return "result " + inv.Name, nil
	}}

	eg := graphOf(models.Subtask{ID: "slow"}, models.Subtask{ID: "fast"})
	res := newTestScheduler(backend).Run(context.Background(), eg, "compare", nil)

	if res.Output != "merged" {
		t.Errorf("Output = %q", res.Output)
	}
	if !strings.Contains(synthPrompt, "[slow]:\nresult Agent_slow") || !strings.Contains(synthPrompt, "[fast]:\nresult Agent_fast") {
		t.Errorf("synthesizer prompt missing results: %q", synthPrompt)
	}
	// Recorded in frontier order regardless of completion order.
	if got := strings.Join(res.Completed, ","); got != "slow,fast" {
		t.Errorf("Completed = %s", got)
	}
}

func TestRunMaxParallelBoundsFanOut(t *testing.T) {
	var inFlight, peak atomic.Int32
	backend := &fakeBackend{respond: func(_ context.Context, inv Invocation) (string, error) {
		if inv.Name == "Synthesizer" {
			return "merged", nil
		}
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}}

	eg := graphOf(models.Subtask{ID: "a"}, models.Subtask{ID: "b"}, models.Subtask{ID: "c"}, models.Subtask{ID: "d"})
	res := newTestScheduler(backend, WithMaxParallel(2)).Run(context.Background(), eg, "req", nil)

	if len(res.Completed) != 4 {
		t.Fatalf("Completed = %v", res.Completed)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak.Load())
	}
}

func TestRunExhaustedChainStillSynthesizes(t *testing.T) {
	var prompt string
	backend := &fakeBackend{respond: func(_ context.Context, inv Invocation) (string, error) {
		switch inv.Name {
		case "Agent_broken":
			return "", &ProviderError{Model: inv.Model, Err: errors.New("500")}
		case "Synthesizer":
			prompt = inv.Request
			return "best effort", nil
		}
		return "fine", nil
	}}

	eg := graphOf(models.Subtask{ID: "ok"}, models.Subtask{ID: "broken"})
	res := newTestScheduler(backend).Run(context.Background(), eg, "req", nil)

	if res.Output != "best effort" {
		t.Errorf("Output = %q", res.Output)
	}
	if !strings.Contains(prompt, "[broken]:\nError: Unable to complete subtask broken") {
		t.Errorf("failure marker not synthesized: %q", prompt)
	}
	if backend.callsNamed("Agent_broken") != 2 {
		t.Errorf("expected both agent models tried, got %d", backend.callsNamed("Agent_broken"))
	}
}

func TestRunOrphanedSubtaskStalls(t *testing.T) {
	backend := &fakeBackend{}
	rec := &recorder{}
	eg := graphOf(
		models.Subtask{ID: "A"},
		models.Subtask{ID: "B", DependsOn: []string{"ghost"}},
	)
	res := newTestScheduler(backend, WithEventSink(rec)).Run(context.Background(), eg, "req", nil)

	if !res.Stalled {
		t.Error("expected stall")
	}
	if !reflect.DeepEqual(res.Remaining, []string{"B"}) {
		t.Errorf("Remaining = %v", res.Remaining)
	}
	if res.Output != "done A" {
		t.Errorf("Output = %q, orphan must not appear", res.Output)
	}
	if backend.callsNamed("Agent_B") != 0 || backend.callsNamed("Synthesizer") != 0 {
		t.Error("orphan must not run or be synthesized")
	}
	if ev := rec.ofType(EventGraphStalled); len(ev) != 1 || !reflect.DeepEqual(ev[0].Subtasks, []string{"B"}) {
		t.Errorf("stall events = %+v", ev)
	}
}

func TestRunCyclicGraphTerminates(t *testing.T) {
	eg := graphOf(
		models.Subtask{ID: "a", DependsOn: []string{"b"}},
		models.Subtask{ID: "b", DependsOn: []string{"a"}},
	)
	res := newTestScheduler(&fakeBackend{}).Run(context.Background(), eg, "req", nil)
	if !res.Stalled || res.Output != NoResultsMessage {
		t.Errorf("report = %+v", res)
	}
}

func TestRunEmptyGraph(t *testing.T) {
	s := newTestScheduler(&fakeBackend{})
	if out := s.ExecuteGraph(context.Background(), nil, "req", nil); out != NoResultsMessage {
		t.Errorf("nil graph output = %q", out)
	}
	if out := s.ExecuteGraph(context.Background(), graphOf(), "req", nil); out != NoResultsMessage {
		t.Errorf("empty graph output = %q", out)
	}
}

func TestRunCompletionOrderMatchesTopologicalSort(t *testing.T) {
	graphs := map[string]*models.ExecutionGraph{
		"diamond": graphOf(
			models.Subtask{ID: "d", DependsOn: []string{"b", "c"}},
			models.Subtask{ID: "c", DependsOn: []string{"a"}},
			models.Subtask{ID: "a"},
			models.Subtask{ID: "b", DependsOn: []string{"a"}},
		),
		"wide": graphOf(
			models.Subtask{ID: "x"},
			models.Subtask{ID: "y"},
			models.Subtask{ID: "z", DependsOn: []string{"y"}},
			models.Subtask{ID: "w", DependsOn: []string{"z", "x"}},
			models.Subtask{ID: "v"},
		),
	}

	for name, eg := range graphs {
		t.Run(name, func(t *testing.T) {
			dg := graph.New()
			if err := dg.Build(eg); err != nil {
				t.Fatalf("Build: %v", err)
			}
			want, err := dg.TopologicalSort()
			if err != nil {
				t.Fatalf("TopologicalSort: %v", err)
			}

			res := newTestScheduler(&fakeBackend{}).Run(context.Background(), eg, "req", nil)
			if !reflect.DeepEqual(res.Completed, want) {
				t.Errorf("Completed = %v, topological order = %v", res.Completed, want)
			}
		})
	}
}

func TestRunCancellationReducesPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := &fakeBackend{respond: func(ctx context.Context, inv Invocation) (string, error) {
		switch inv.Name {
		case "Agent_first":
			return "first result", nil
		case "Agent_second":
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "unexpected", nil
	}}

	eg := graphOf(
		models.Subtask{ID: "first"},
		models.Subtask{ID: "second", DependsOn: []string{"first"}},
		models.Subtask{ID: "third", DependsOn: []string{"second"}},
	)
	res := newTestScheduler(backend).Run(ctx, eg, "req", nil)

	if !res.Cancelled {
		t.Error("expected cancelled run")
	}
	if res.Output != "first result" {
		t.Errorf("Output = %q", res.Output)
	}
	if !reflect.DeepEqual(res.Remaining, []string{"second", "third"}) {
		t.Errorf("Remaining = %v", res.Remaining)
	}
	if backend.callsNamed("Agent_third") != 0 {
		t.Error("third must not start after cancellation")
	}
}

func TestRunPassesResolvedProviders(t *testing.T) {
	weather := &toolProvider{name: "weather", tools: []string{"get_weather"}}
	search := &toolProvider{name: "search", tools: []string{"web_search"}}
	providers := []capability.Provider{weather, search}
	backend := &fakeBackend{}

	s := newTestScheduler(backend, WithRegistry(capability.NewRegistry(providers...)))
	s.Run(context.Background(), graphOf(models.Subtask{ID: "w", Tools: []string{"web_search"}}), "req", providers)

	calls := backend.invocations()
	if len(calls) != 1 || names(calls[0].Providers) != "search" {
		t.Errorf("providers passed = %v", calls)
	}
}

// panickyProvider panics whenever its tools are listed.
type panickyProvider struct{ toolProvider }

func (p *panickyProvider) ToolNames() []string { panic("tool listing failed") }

func TestRunPanicOutsideBackendFailsOnlyThatSubtask(t *testing.T) {
	backend := &fakeBackend{}
	providers := []capability.Provider{&panickyProvider{toolProvider{name: "broken"}}}
	eg := graphOf(
		models.Subtask{ID: "a", Tools: []string{"x"}},
		models.Subtask{ID: "b"},
	)

	res := newTestScheduler(backend).Run(context.Background(), eg, "req", providers)

	if res.Stalled || res.Cancelled || len(res.Remaining) != 0 {
		t.Fatalf("run = %+v", res)
	}
	got := map[string]string{}
	for _, r := range res.Results {
		got[r.ID] = r.Text
	}
	if got["a"] != FailureMarker("a") || got["b"] != "done b" {
		t.Errorf("results = %v", got)
	}
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	rec := &recorder{}
	backend := &fakeBackend{}
	eg := graphOf(models.Subtask{ID: "a"}, models.Subtask{ID: "b", DependsOn: []string{"a"}})
	newTestScheduler(backend, WithEventSink(rec)).Run(context.Background(), eg, "req", nil)

	if len(rec.ofType(EventExecuting)) != 1 {
		t.Error("expected one executing event")
	}
	if len(rec.ofType(EventSubtaskStarted)) != 2 || len(rec.ofType(EventSubtaskCompleted)) != 2 {
		t.Errorf("events = %+v", rec.events)
	}
	for _, e := range rec.events {
		if e.Timestamp.IsZero() {
			t.Errorf("event %s has no timestamp", e.Type)
		}
	}
}
