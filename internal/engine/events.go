package engine

import (
	"sync"
	"time"

	"github.com/ShayCichocki/jit/pkg/models"
)

// EventType represents the type of progress event.
type EventType string

const (
	// EventRouting indicates the router is deciding how to handle a request.
	EventRouting EventType = "routing"
	// EventRouted carries the router's decision.
	EventRouted EventType = "routed"
	// EventPlanning indicates the planner is building an execution graph.
	EventPlanning EventType = "planning"
	// EventPlanned carries the subtasks of the planned graph.
	EventPlanned EventType = "planned"
	// EventExecuting indicates the scheduler has started walking the graph.
	EventExecuting EventType = "executing"
	// EventSubtaskStarted indicates a subtask was dispatched.
	EventSubtaskStarted EventType = "subtask_started"
	// EventSubtaskCompleted indicates a subtask produced a result.
	EventSubtaskCompleted EventType = "subtask_completed"
	// EventSubtaskSkipped indicates a subtask's condition was not met.
	EventSubtaskSkipped EventType = "subtask_skipped"
	// EventToolCall reports a tool invoked on behalf of a subtask.
	EventToolCall EventType = "tool_call"
	// EventGraphStalled indicates no subtask could become ready.
	EventGraphStalled EventType = "graph_stalled"
	// EventSynthesizing indicates results are being merged.
	EventSynthesizing EventType = "synthesizing"
	// EventResponding indicates a direct answer is being generated.
	EventResponding EventType = "responding"
	// EventDone indicates the request has been answered.
	EventDone EventType = "done"
)

// Event is a progress notification emitted while a request is handled.
type Event struct {
	// Type is the kind of event.
	Type EventType `json:"type"`
	// SubtaskID is the related subtask, if any.
	SubtaskID string `json:"subtask_id,omitempty"`
	// Message provides additional context about the event.
	Message string `json:"message,omitempty"`
	// Path and Reasoning are set on routed events.
	Path      models.RoutePath `json:"path,omitempty"`
	Reasoning string           `json:"reasoning,omitempty"`
	// Subtasks lists subtask IDs on planned and stalled events.
	Subtasks []string `json:"subtasks,omitempty"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives progress events. Implementations must not block.
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to an EventSink.
type EventSinkFunc func(Event)

// Emit calls f(e).
func (f EventSinkFunc) Emit(e Event) { f(e) }

// Emit stamps and forwards an event; a nil sink drops it.
func Emit(sink EventSink, e Event) {
	if sink == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	sink.Emit(e)
}

// MultiSink fans events out to every added sink. Sinks may be added while
// events are flowing.
type MultiSink struct {
	mu    sync.RWMutex
	sinks []EventSink
}

// NewMultiSink creates a MultiSink over the non-nil sinks given.
func NewMultiSink(sinks ...EventSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		m.Add(s)
	}
	return m
}

// Add registers another sink. A nil sink is ignored.
func (m *MultiSink) Add(sink EventSink) {
	if sink == nil {
		return
	}
	m.mu.Lock()
	m.sinks = append(m.sinks, sink)
	m.mu.Unlock()
}

// Emit forwards e to every sink in the order they were added.
func (m *MultiSink) Emit(e Event) {
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()
	for _, s := range sinks {
		s.Emit(e)
	}
}

var _ EventSink = (*MultiSink)(nil)
