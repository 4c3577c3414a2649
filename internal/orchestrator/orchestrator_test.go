package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/pkg/models"
)

type fakeRouter struct {
	decision models.RouteDecision
	err      error
	history  string
}

func (r *fakeRouter) Route(_ context.Context, _ string, history string) (models.RouteDecision, error) {
	r.history = history
	return r.decision, r.err
}

type fakePlanner struct {
	graph     *models.ExecutionGraph
	err       error
	panicWith interface{}
	toolNames []string
	history   string
}

func (p *fakePlanner) Plan(_ context.Context, _ string, toolNames []string, history string) (*models.ExecutionGraph, error) {
	if p.panicWith != nil {
		panic(p.panicWith)
	}
	p.toolNames = toolNames
	p.history = history
	return p.graph, p.err
}

// fakeMemory keeps turns in memory and renders every turn as context.
type fakeMemory struct {
	mu     sync.Mutex
	turns  []models.Turn
	limits []int
}

func (m *fakeMemory) ID() string { return "test-session" }

func (m *fakeMemory) Context(limit int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, limit)
	var lines []string
	for _, t := range m.turns {
		lines = append(lines, t.Label()+": "+t.Content)
	}
	return strings.Join(lines, "\n"), nil
}

func (m *fakeMemory) Add(role models.Role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, models.Turn{Role: role, Content: content})
	return nil
}

type fakeRuns struct {
	started  []models.RunRecord
	finished []models.RunRecord
}

func (s *fakeRuns) StartRun(r *models.RunRecord) error {
	s.started = append(s.started, *r)
	return nil
}

func (s *fakeRuns) FinishRun(r *models.RunRecord) error {
	s.finished = append(s.finished, *r)
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []engine.Event
}

func (r *recorder) Emit(e engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, string(e.Type))
	}
	return out
}

type weatherTools struct{}

func (weatherTools) Name() string        { return "weather" }
func (weatherTools) ToolNames() []string { return []string{"get_weather"} }
func (weatherTools) Tools() []capability.ToolSpec {
	return []capability.ToolSpec{{Name: "get_weather"}}
}
func (weatherTools) Invoke(context.Context, string, json.RawMessage) (capability.Result, error) {
	return capability.Result{Content: "rain"}, nil
}

type harness struct {
	router  *fakeRouter
	planner *fakePlanner
	memory  *fakeMemory
	runs    *fakeRuns
	events  *recorder

	mu    sync.Mutex
	calls []engine.Invocation
}

func (h *harness) invocations() []engine.Invocation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]engine.Invocation(nil), h.calls...)
}

func newHarness(respond func(inv engine.Invocation) (string, error), opts ...Option) (*Facade, *harness) {
	h := &harness{
		router:  &fakeRouter{decision: models.RouteDecision{Path: models.RouteDirect, Reasoning: "greeting"}},
		planner: &fakePlanner{},
		memory:  &fakeMemory{},
		runs:    &fakeRuns{},
		events:  &recorder{},
	}
	backend := engine.BackendFunc(func(_ context.Context, inv engine.Invocation) (string, error) {
		h.mu.Lock()
		h.calls = append(h.calls, inv)
		h.mu.Unlock()
		return respond(inv)
	})
	scheduler := engine.NewScheduler(backend,
		engine.WithAgentModels("agent-1", "agent-2"),
		engine.WithSynthesizerModels("synth-1"),
		engine.WithEventSink(h.events),
		engine.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)

	all := append([]Option{
		WithMemory(h.memory),
		WithRunStore(h.runs),
		WithEventSink(h.events),
		WithRegistry(capability.NewRegistry(weatherTools{})),
	}, opts...)

	f := New(RequiredConfig{
		Router:    h.router,
		Planner:   h.planner,
		Scheduler: scheduler,
		Backend:   backend,
	}, all...)
	return f, h
}

func TestFacade_DirectPath(t *testing.T) {
	f, h := newHarness(func(inv engine.Invocation) (string, error) {
		return "Hello there!", nil
	})
	h.memory.Add(models.RoleUser, "earlier question")
	h.memory.Add(models.RoleAssistant, "earlier answer")

	got := f.Handle(context.Background(), "hi")
	if got != "Hello there!" {
		t.Fatalf("Handle = %q", got)
	}

	calls := h.invocations()
	if len(calls) != 1 {
		t.Fatalf("expected one backend call, got %d", len(calls))
	}
	if calls[0].Model != "agent-1" || len(calls[0].Providers) != 0 {
		t.Errorf("direct call = %+v", calls[0])
	}
	if !strings.HasPrefix(calls[0].Instructions, "Previous conversation:\nUser: earlier question") {
		t.Errorf("history missing from instructions: %q", calls[0].Instructions)
	}
	if strings.Contains(h.router.history, "User: hi") {
		t.Errorf("router history should not contain the current request: %q", h.router.history)
	}

	if n := len(h.memory.turns); n != 4 || h.memory.turns[2].Content != "hi" || h.memory.turns[3].Content != "Hello there!" {
		t.Errorf("memory turns = %+v", h.memory.turns)
	}

	if got, want := strings.Join(h.events.types(), ","), "routing,routed,responding,done"; got != want {
		t.Errorf("events = %s, want %s", got, want)
	}

	if len(h.runs.started) != 1 || len(h.runs.finished) != 1 {
		t.Fatalf("runs started=%d finished=%d", len(h.runs.started), len(h.runs.finished))
	}
	run := h.runs.finished[0]
	if run.Path != models.RouteDirect || run.Response != "Hello there!" || run.SessionID != "test-session" || run.Graph != nil {
		t.Errorf("finished run = %+v", run)
	}
	if run.ID != h.runs.started[0].ID {
		t.Error("start and finish should share a run ID")
	}
}

func TestFacade_AgentPath(t *testing.T) {
	f, h := newHarness(func(inv engine.Invocation) (string, error) {
		switch inv.Name {
		case "Synthesizer":
			return "Oslo is rainy, Rome is sunny.", nil
		case "Agent_oslo":
			return "Oslo: rain", nil
		default:
			return "Rome: sun", nil
		}
	})
	h.router.decision = models.RouteDecision{Path: models.RouteAgent, Reasoning: "needs weather"}
	h.planner.graph = &models.ExecutionGraph{Subtasks: []models.Subtask{
		{ID: "oslo", Tools: []string{"get_weather"}, Instructions: "Oslo weather"},
		{ID: "rome", Tools: []string{"get_weather"}, Instructions: "Rome weather"},
	}}

	resp := f.Respond(context.Background(), "Compare Oslo and Rome")
	if resp.Text != "Oslo is rainy, Rome is sunny." {
		t.Fatalf("Text = %q", resp.Text)
	}
	if resp.Report == nil || len(resp.Report.Completed) != 2 {
		t.Fatalf("Report = %+v", resp.Report)
	}
	if strings.Join(h.planner.toolNames, ",") != "get_weather" {
		t.Errorf("planner tool names = %v", h.planner.toolNames)
	}
	if resp.Run.Graph == nil || resp.Run.Path != models.RouteAgent {
		t.Errorf("run = %+v", resp.Run)
	}

	for _, inv := range h.invocations() {
		if strings.HasPrefix(inv.Name, engine.AgentNamePrefix) && len(inv.Providers) != 1 {
			t.Errorf("%s got %d providers", inv.Name, len(inv.Providers))
		}
	}

	types := strings.Join(h.events.types(), ",")
	if !strings.HasPrefix(types, "routing,routed,planning,planned,executing") || !strings.HasSuffix(types, "synthesizing,done") {
		t.Errorf("events = %s", types)
	}
	if got := h.memory.limits; len(got) != 2 || got[0] != DefaultRouterTokens || got[1] != DefaultPlannerTokens {
		t.Errorf("context budgets = %v", got)
	}
}

func TestFacade_ContextBudgets(t *testing.T) {
	f, h := newHarness(func(engine.Invocation) (string, error) { return "ok", nil },
		WithContextBudgets(50, 0))

	f.Handle(context.Background(), "hi")
	if got := h.memory.limits; len(got) != 2 || got[0] != 50 || got[1] != DefaultPlannerTokens {
		t.Errorf("context budgets = %v", got)
	}
}

func TestFacade_FailuresBecomeApology(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		reply func(engine.Invocation) (string, error)
	}{
		{
			name:  "router error",
			setup: func(h *harness) { h.router.err = context.Canceled },
		},
		{
			name: "planner error",
			setup: func(h *harness) {
				h.router.decision.Path = models.RouteAgent
				h.planner.err = errors.New("boom")
			},
		},
		{
			name: "planner panic",
			setup: func(h *harness) {
				h.router.decision.Path = models.RouteAgent
				h.planner.panicWith = "nil map write"
			},
		},
		{
			name:  "direct backend error",
			setup: func(h *harness) {},
			reply: func(engine.Invocation) (string, error) {
				return "", &engine.ProviderError{Model: "agent-1", Err: errors.New("overloaded")}
			},
		},
		{
			name:  "direct backend panic",
			setup: func(h *harness) {},
			reply: func(engine.Invocation) (string, error) { panic("backend exploded") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := tt.reply
			if reply == nil {
				reply = func(engine.Invocation) (string, error) { return "unused", nil }
			}
			f, h := newHarness(reply)
			tt.setup(h)

			got := f.Handle(context.Background(), "hello")
			if got != ApologyMessage {
				t.Fatalf("Handle = %q, want apology", got)
			}
			if len(h.runs.finished) != 1 || h.runs.finished[0].Response != ApologyMessage {
				t.Errorf("finished runs = %+v", h.runs.finished)
			}
			types := h.events.types()
			if len(types) == 0 || types[len(types)-1] != string(engine.EventDone) {
				t.Errorf("expected done event last, got %v", types)
			}
			last := h.memory.turns[len(h.memory.turns)-1]
			if last.Role != models.RoleAssistant || last.Content != ApologyMessage {
				t.Errorf("last turn = %+v", last)
			}
		})
	}
}

func TestFacade_DirectPathUsesCallTimeoutAndRetries(t *testing.T) {
	var attempts int
	backend := engine.BackendFunc(func(ctx context.Context, inv engine.Invocation) (string, error) {
		attempts++
		if attempts == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "second attempt", nil
	})
	scheduler := engine.NewScheduler(backend,
		engine.WithAgentModels("agent-1", "agent-2"),
		engine.WithRetriesPerModel(1),
		engine.WithCallTimeout(20*time.Millisecond),
		engine.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	f := New(RequiredConfig{
		Router:    &fakeRouter{decision: models.RouteDecision{Path: models.RouteDirect}},
		Planner:   &fakePlanner{},
		Scheduler: scheduler,
		Backend:   backend,
	})

	done := make(chan string, 1)
	go func() { done <- f.Handle(context.Background(), "hi") }()

	select {
	case got := <-done:
		if got != "second attempt" {
			t.Errorf("Handle = %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("direct call was not bounded by the call timeout")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestFacade_WithoutOptionalDependencies(t *testing.T) {
	backend := engine.BackendFunc(func(_ context.Context, inv engine.Invocation) (string, error) {
		if inv.Model != "direct-model" {
			return "", errors.New("wrong model " + inv.Model)
		}
		return "plain answer", nil
	})
	f := New(RequiredConfig{
		Router:    &fakeRouter{decision: models.RouteDecision{Path: models.RouteDirect}},
		Planner:   &fakePlanner{},
		Scheduler: engine.NewScheduler(backend),
		Backend:   backend,
	}, WithDirectModel("direct-model"))

	resp := f.Respond(context.Background(), "hi")
	if resp.Text != "plain answer" {
		t.Fatalf("Text = %q", resp.Text)
	}
	if resp.Run.SessionID != "" || resp.Run.ID == "" {
		t.Errorf("run = %+v", resp.Run)
	}
}

func TestFacade_AgentPathWithoutTools(t *testing.T) {
	f, h := newHarness(func(inv engine.Invocation) (string, error) {
		return "did it", nil
	}, WithRegistry(nil))
	h.router.decision.Path = models.RouteAgent
	h.planner.graph = &models.ExecutionGraph{Subtasks: []models.Subtask{{ID: "only", Instructions: "do it"}}}

	if got := f.Handle(context.Background(), "do it"); got != "did it" {
		t.Fatalf("Handle = %q", got)
	}
	if len(h.planner.toolNames) != 0 {
		t.Errorf("expected no tool names, got %v", h.planner.toolNames)
	}
}
