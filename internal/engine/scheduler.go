package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/pkg/models"
)

// NoResultsMessage is returned when a run produced no results at all.
const NoResultsMessage = "No subtasks were executed."

// Option configures a Scheduler. Use With* functions to create Options.
type Option func(*schedulerOptions)

type schedulerOptions struct {
	agentModels       []string
	synthesizerModels []string
	maxParallel       int
	retries           int
	callTimeout       time.Duration
	index             *capability.Registry
	events            EventSink
	newBackOff        func() backoff.BackOff
}

// WithAgentModels sets the fallback chain used for subtasks.
func WithAgentModels(models ...string) Option {
	return func(o *schedulerOptions) { o.agentModels = models }
}

// WithSynthesizerModels sets the fallback chain used to merge results.
func WithSynthesizerModels(models ...string) Option {
	return func(o *schedulerOptions) { o.synthesizerModels = models }
}

// WithMaxParallel bounds how many subtasks of one frontier run at once.
// Zero or negative means unbounded.
func WithMaxParallel(n int) Option {
	return func(o *schedulerOptions) { o.maxParallel = n }
}

// WithRetriesPerModel sets how many times a failing model is retried before
// falling back to the next one.
func WithRetriesPerModel(n int) Option {
	return func(o *schedulerOptions) { o.retries = n }
}

// WithCallTimeout bounds each backend call. Zero means no limit.
func WithCallTimeout(d time.Duration) Option {
	return func(o *schedulerOptions) { o.callTimeout = d }
}

// WithRegistry gives the resolver a tool name index.
func WithRegistry(r *capability.Registry) Option {
	return func(o *schedulerOptions) { o.index = r }
}

// WithEventSink sets where progress events go.
func WithEventSink(sink EventSink) Option {
	return func(o *schedulerOptions) { o.events = sink }
}

// WithBackOff overrides the retry schedule between attempts on one model.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(o *schedulerOptions) { o.newBackOff = fn }
}

// Scheduler walks an execution graph frontier by frontier. It holds no
// per-run state and may serve concurrent runs.
type Scheduler struct {
	runner      *TaskRunner
	synthesizer *Synthesizer
	maxParallel int
	events      EventSink
}

// NewScheduler creates a scheduler over backend.
func NewScheduler(backend Backend, opts ...Option) *Scheduler {
	o := &schedulerOptions{}
	for _, opt := range opts {
		opt(o)
	}

	runner := NewTaskRunner(backend, o.agentModels, NewResolver(o.index))
	synth := NewSynthesizer(backend, o.synthesizerModels)
	for _, c := range []*Chain{runner.chain, synth.chain} {
		c.retries = o.retries
		c.timeout = o.callTimeout
		c.newBackOff = o.newBackOff
	}

	return &Scheduler{
		runner:      runner,
		synthesizer: synth,
		maxParallel: o.maxParallel,
		events:      o.events,
	}
}

// Runner returns the scheduler's task runner.
func (s *Scheduler) Runner() *TaskRunner { return s.runner }

// Synthesizer returns the scheduler's result reducer.
func (s *Scheduler) Synthesizer() *Synthesizer { return s.synthesizer }

// RunResult reports what one graph run did.
type RunResult struct {
	// Results holds subtask outcomes in the order they were recorded.
	Results []Result `json:"results"`
	// Completed lists executed and skipped IDs in completion order.
	Completed []string `json:"completed"`
	// Skipped lists IDs whose condition was not met.
	Skipped []string `json:"skipped,omitempty"`
	// Remaining lists IDs that never ran, in graph order.
	Remaining []string `json:"remaining,omitempty"`
	// Stalled is set when no remaining subtask could become ready.
	Stalled bool `json:"stalled"`
	// Cancelled is set when the caller's context ended the run early.
	Cancelled bool `json:"cancelled"`
	// Output is the final answer.
	Output string `json:"output"`
}

// ExecuteGraph runs eg and returns the final answer.
func (s *Scheduler) ExecuteGraph(ctx context.Context, eg *models.ExecutionGraph, request string, providers []capability.Provider) string {
	return s.Run(ctx, eg, request, providers).Output
}

// run holds the bookkeeping of a single graph walk.
type run struct {
	graph     *models.ExecutionGraph
	results   *ResultSet
	completed map[string]bool
	report    *RunResult
}

func (r *run) complete(id string) {
	if r.completed[id] {
		return
	}
	r.completed[id] = true
	r.report.Completed = append(r.report.Completed, id)
}

// Run walks eg until every subtask is completed or skipped, no subtask can
// become ready, or ctx is cancelled, then reduces the results.
func (s *Scheduler) Run(ctx context.Context, eg *models.ExecutionGraph, request string, providers []capability.Provider) *RunResult {
	if eg == nil {
		eg = &models.ExecutionGraph{}
	}
	r := &run{
		graph:     eg,
		results:   NewResultSet(),
		completed: make(map[string]bool),
		report:    &RunResult{},
	}
	total := len(uniqueIDs(eg))

	debugLog("[scheduler] starting run with %d subtasks", total)
	Emit(s.events, Event{Type: EventExecuting, Subtasks: eg.IDs()})

	for len(r.completed) < total {
		if ctx.Err() != nil {
			r.report.Cancelled = true
			break
		}

		ready, skipped := s.frontier(r)
		if len(ready) == 0 {
			if skipped > 0 {
				continue
			}
			r.report.Stalled = true
			break
		}

		if err := s.dispatch(ctx, r, ready, request, providers); err != nil {
			r.report.Cancelled = true
			break
		}
	}

	for _, id := range uniqueIDs(eg) {
		if !r.completed[id] {
			r.report.Remaining = append(r.report.Remaining, id)
		}
	}
	if r.report.Stalled {
		debugLog("[scheduler] no ready subtasks, remaining: %v", r.report.Remaining)
		Emit(s.events, Event{Type: EventGraphStalled, Subtasks: r.report.Remaining})
	}
	if r.report.Cancelled {
		debugLog("[scheduler] cancelled with %d results", r.results.Len())
	}

	r.report.Results = r.results.Entries()
	r.report.Output = s.reduce(ctx, request, r.results)
	return r.report
}

// frontier returns the subtasks that can run now, in graph order. Candidates
// whose condition fails are completed as skipped on the spot, so later
// candidates in the same pass see them as done.
func (s *Scheduler) frontier(r *run) (ready []models.Subtask, skipped int) {
	queued := make(map[string]bool)
	for _, st := range r.graph.Subtasks {
		if r.completed[st.ID] || queued[st.ID] {
			continue
		}
		if !dependenciesMet(st, r.completed) {
			continue
		}
		if st.HasCondition() && !Evaluate(st.Condition, r.results) {
			debugLog("[scheduler] skipping %s: condition %q not met", st.ID, st.Condition)
			r.complete(st.ID)
			r.report.Skipped = append(r.report.Skipped, st.ID)
			Emit(s.events, Event{Type: EventSubtaskSkipped, SubtaskID: st.ID, Message: st.Condition})
			skipped++
			continue
		}
		queued[st.ID] = true
		ready = append(ready, st)
	}
	return ready, skipped
}

// dispatch runs a frontier and records its results in frontier order once
// every member has finished. Returns the context error on cancellation;
// members that did finish are still recorded.
func (s *Scheduler) dispatch(ctx context.Context, r *run, ready []models.Subtask, request string, providers []capability.Provider) error {
	outputs := make([]string, len(ready))
	finished := make([]bool, len(ready))

	runOne := func(i int) (err error) {
		st := ready[i]
		defer func() {
			// A panic outside the backend call, e.g. in a provider's
			// ToolNames, fails only this subtask.
			if p := recover(); p != nil {
				debugLog("[scheduler] %s panicked: %v", st.ID, p)
				outputs[i], finished[i], err = FailureMarker(st.ID), true, nil
			}
		}()
		Emit(s.events, Event{Type: EventSubtaskStarted, SubtaskID: st.ID})
		out, err := s.runner.Run(ctx, st, request, r.results, providers)
		if err != nil {
			return err
		}
		outputs[i], finished[i] = out, true
		return nil
	}

	var err error
	if len(ready) == 1 {
		debugLog("[scheduler] executing: %s", ready[0].ID)
		err = runOne(0)
	} else {
		debugLog("[scheduler] executing in parallel: %v", subtaskIDs(ready))
		var g errgroup.Group
		if s.maxParallel > 0 {
			g.SetLimit(s.maxParallel)
		}
		for i := range ready {
			g.Go(func() error { return runOne(i) })
		}
		err = g.Wait()
	}

	for i, st := range ready {
		if !finished[i] {
			continue
		}
		r.results.Record(st.ID, outputs[i])
		r.complete(st.ID)
		Emit(s.events, Event{Type: EventSubtaskCompleted, SubtaskID: st.ID, Message: outputs[i]})
	}
	return err
}

// reduce applies the output policy: nothing, one result verbatim, or a synthesis.
func (s *Scheduler) reduce(ctx context.Context, request string, results *ResultSet) string {
	switch results.Len() {
	case 0:
		return NoResultsMessage
	case 1:
		return results.Entries()[0].Text
	default:
		Emit(s.events, Event{Type: EventSynthesizing, Subtasks: results.IDs()})
		return s.synthesizer.Synthesize(ctx, request, results)
	}
}

func dependenciesMet(st models.Subtask, completed map[string]bool) bool {
	for _, dep := range st.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

func subtaskIDs(subtasks []models.Subtask) []string {
	ids := make([]string, len(subtasks))
	for i, st := range subtasks {
		ids[i] = st.ID
	}
	return ids
}

// uniqueIDs returns the graph's IDs in order, dropping repeats.
func uniqueIDs(eg *models.ExecutionGraph) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range eg.IDs() {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
