package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/pkg/models"
)

// ApologyMessage is returned whenever a request could not be answered.
const ApologyMessage = "I apologize, but I'm having trouble responding right now."

const directInstructions = "You are a helpful assistant. Answer the user's question directly and concisely."

// Router classifies a request given recent conversation history.
type Router interface {
	Route(ctx context.Context, request, history string) (models.RouteDecision, error)
}

// Planner builds an execution graph for an agent-path request.
type Planner interface {
	Plan(ctx context.Context, request string, toolNames []string, history string) (*models.ExecutionGraph, error)
}

// Memory is the conversation a facade reads history from and appends to.
type Memory interface {
	ID() string
	Context(tokenLimit int) (string, error)
	Add(role models.Role, content string) error
}

// RunStore persists run records.
type RunStore interface {
	StartRun(r *models.RunRecord) error
	FinishRun(r *models.RunRecord) error
}

// Response is the full outcome of one request.
type Response struct {
	// Run is the record stored for this request.
	Run models.RunRecord `json:"run"`
	// Report is the scheduler's report on the agent path, nil otherwise.
	Report *engine.RunResult `json:"report,omitempty"`
	// Text is the answer shown to the user.
	Text string `json:"text"`
}

// Facade handles requests end to end. It is safe for concurrent use as long
// as its Memory and RunStore are.
type Facade struct {
	router    Router
	planner   Planner
	scheduler *engine.Scheduler
	backend   engine.Backend

	memory        Memory
	runs          RunStore
	registry      func() *capability.Registry
	events        engine.EventSink
	logger        *engine.DebugLogger
	routerTokens  int
	plannerTokens int
	directChain   *engine.Chain
}

// New creates a Facade with the required configuration and optional settings.
func New(cfg RequiredConfig, opts ...Option) *Facade {
	o := &facadeOptions{
		routerTokens:  DefaultRouterTokens,
		plannerTokens: DefaultPlannerTokens,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = engine.NopLogger()
	}
	if o.registry == nil {
		o.registry = func() *capability.Registry { return nil }
	}
	direct := engine.NewChain([]string{o.directModel})
	if cfg.Scheduler != nil {
		model := o.directModel
		if model == "" {
			model = cfg.Scheduler.Runner().PrimaryModel()
		}
		direct = cfg.Scheduler.Runner().Chain().WithModels(model)
	}

	return &Facade{
		router:        cfg.Router,
		planner:       cfg.Planner,
		scheduler:     cfg.Scheduler,
		backend:       cfg.Backend,
		memory:        o.memory,
		runs:          o.runs,
		registry:      o.registry,
		events:        o.events,
		logger:        o.logger,
		routerTokens:  o.routerTokens,
		plannerTokens: o.plannerTokens,
		directChain:   direct,
	}
}

// Handle answers a request. It never fails: errors and panics anywhere in
// the chain become ApologyMessage.
func (f *Facade) Handle(ctx context.Context, request string) string {
	return f.Respond(ctx, request).Text
}

// Respond answers a request and reports how it was handled.
func (f *Facade) Respond(ctx context.Context, request string) (resp *Response) {
	resp = &Response{Run: models.RunRecord{
		ID:        uuid.New().String(),
		Request:   request,
		StartedAt: time.Now(),
	}}
	if f.memory != nil {
		resp.Run.SessionID = f.memory.ID()
	}
	if f.runs != nil {
		if err := f.runs.StartRun(&resp.Run); err != nil {
			f.logger.Log("[facade] run %s: start record: %v", resp.Run.ID, err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			f.logger.Log("[facade] run %s: panic: %v\n%s", resp.Run.ID, r, debug.Stack())
			resp.Text = ApologyMessage
		}
		f.finish(resp)
	}()

	text, err := f.handle(ctx, resp)
	if err != nil {
		f.logger.Log("[facade] run %s: %v", resp.Run.ID, err)
		text = ApologyMessage
	}
	resp.Text = text
	return resp
}

func (f *Facade) handle(ctx context.Context, resp *Response) (string, error) {
	request := resp.Run.Request
	routerHistory := f.history(f.routerTokens)
	plannerHistory := f.history(f.plannerTokens)
	f.remember(models.RoleUser, request)

	engine.Emit(f.events, engine.Event{Type: engine.EventRouting, Message: "Analyzing your request..."})
	decision, err := f.router.Route(ctx, request, routerHistory)
	if err != nil {
		return "", fmt.Errorf("route: %w", err)
	}
	resp.Run.Path = decision.Path
	resp.Run.Reasoning = decision.Reasoning
	f.logger.Log("[facade] run %s: path=%s reasoning=%q", resp.Run.ID, decision.Path, decision.Reasoning)
	engine.Emit(f.events, engine.Event{Type: engine.EventRouted, Path: decision.Path, Reasoning: decision.Reasoning})

	if decision.Path != models.RouteAgent {
		engine.Emit(f.events, engine.Event{Type: engine.EventResponding, Message: "Generating response..."})
		return f.direct(ctx, request, routerHistory)
	}

	registry := f.registry()
	engine.Emit(f.events, engine.Event{Type: engine.EventPlanning, Message: "Creating execution plan..."})
	eg, err := f.planner.Plan(ctx, request, registry.ToolNames(), plannerHistory)
	if err != nil {
		return "", fmt.Errorf("plan: %w", err)
	}
	resp.Run.Graph = eg
	engine.Emit(f.events, engine.Event{Type: engine.EventPlanned, Subtasks: eg.IDs()})

	report := f.scheduler.Run(ctx, eg, request, registry.Providers())
	resp.Report = report
	if report.Stalled {
		f.logger.Log("[facade] run %s: graph stalled with %v remaining", resp.Run.ID, report.Remaining)
	}
	return report.Output, nil
}

// direct answers without tools or planning.
func (f *Facade) direct(ctx context.Context, request, history string) (string, error) {
	instructions := directInstructions
	if history != "" {
		instructions = "Previous conversation:\n" + history + "\n\n" + directInstructions
	}

	out, err := f.directChain.Run(ctx, "direct", func(ctx context.Context, model string) (string, error) {
		return f.backend.Invoke(ctx, engine.Invocation{
			Name:         "DirectAssistant",
			Instructions: instructions,
			Request:      request,
			Model:        model,
		})
	})
	if err != nil {
		return "", fmt.Errorf("direct answer from %v: %w", f.directChain.Models(), err)
	}
	return out, nil
}

// finish stores the answer and closes the run. It runs even after a panic.
func (f *Facade) finish(resp *Response) {
	resp.Run.Response = resp.Text
	resp.Run.FinishedAt = time.Now()
	f.remember(models.RoleAssistant, resp.Text)

	if f.runs != nil {
		if err := f.runs.FinishRun(&resp.Run); err != nil {
			f.logger.Log("[facade] run %s: finish record: %v", resp.Run.ID, err)
		}
	}
	engine.Emit(f.events, engine.Event{Type: engine.EventDone, Message: resp.Text})
	f.logger.Log("[facade] run %s: done in %s", resp.Run.ID, resp.Run.Duration())
}

func (f *Facade) history(tokens int) string {
	if f.memory == nil {
		return ""
	}
	ctx, err := f.memory.Context(tokens)
	if err != nil {
		f.logger.Log("[facade] read history: %v", err)
		return ""
	}
	return ctx
}

func (f *Facade) remember(role models.Role, content string) {
	if f.memory == nil {
		return
	}
	if err := f.memory.Add(role, content); err != nil {
		f.logger.Log("[facade] record %s turn: %v", role, err)
	}
}
