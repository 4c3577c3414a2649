package orchestrator

import (
	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/internal/engine"
)

// Default context budgets, in estimated tokens.
const (
	DefaultRouterTokens  = 500
	DefaultPlannerTokens = 1000
)

// RequiredConfig contains the minimal required configuration for a Facade.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Router classifies requests.
	Router Router
	// Planner builds execution graphs on the agent path.
	Planner Planner
	// Scheduler executes planned graphs.
	Scheduler *engine.Scheduler
	// Backend answers direct-path requests.
	Backend engine.Backend
}

// Option configures a Facade. Use With* functions to create Options.
type Option func(*facadeOptions)

type facadeOptions struct {
	memory        Memory
	runs          RunStore
	registry      func() *capability.Registry
	events        engine.EventSink
	logger        *engine.DebugLogger
	routerTokens  int
	plannerTokens int
	directModel   string
}

// WithMemory sets the conversation memory. Without it every request is
// handled without history.
func WithMemory(m Memory) Option {
	return func(o *facadeOptions) { o.memory = m }
}

// WithRunStore records every request as a run.
func WithRunStore(s RunStore) Option {
	return func(o *facadeOptions) { o.runs = s }
}

// WithRegistry sets a fixed tool registry.
func WithRegistry(r *capability.Registry) Option {
	return func(o *facadeOptions) { o.registry = func() *capability.Registry { return r } }
}

// WithRegistrySource reads the registry once per request, e.g. from a
// capability.Watcher that reloads the tool manifest.
func WithRegistrySource(fn func() *capability.Registry) Option {
	return func(o *facadeOptions) { o.registry = fn }
}

// WithEventSink sets where progress events go. The scheduler is configured
// separately and should normally share the same sink.
func WithEventSink(sink engine.EventSink) Option {
	return func(o *facadeOptions) { o.events = sink }
}

// WithLogger sets the debug logger.
func WithLogger(l *engine.DebugLogger) Option {
	return func(o *facadeOptions) { o.logger = l }
}

// WithContextBudgets sets how many estimated tokens of history the router and
// planner see. Non-positive values keep the defaults.
func WithContextBudgets(routerTokens, plannerTokens int) Option {
	return func(o *facadeOptions) {
		if routerTokens > 0 {
			o.routerTokens = routerTokens
		}
		if plannerTokens > 0 {
			o.plannerTokens = plannerTokens
		}
	}
}

// WithDirectModel overrides the model used on the direct path. By default it
// is the scheduler's primary agent model. Either way the call keeps the agent
// chain's timeout and retries.
func WithDirectModel(model string) Option {
	return func(o *facadeOptions) { o.directModel = model }
}
