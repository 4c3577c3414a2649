package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// emitGrace is how long Emit waits on a full buffer before dropping.
const emitGrace = 100 * time.Millisecond

// EventEmitter is an EventSink that queues events on a buffered channel for
// a single consumer. Emit never blocks for longer than emitGrace.
type EventEmitter struct {
	mu      sync.RWMutex
	closed  bool
	events  chan Event
	dropped atomic.Uint64
}

// NewEventEmitter creates an emitter buffering up to size events.
func NewEventEmitter(size int) *EventEmitter {
	return &EventEmitter{events: make(chan Event, size)}
}

// Emit queues e, dropping it if the consumer stays behind for emitGrace.
// Emit after Close is a no-op.
func (e *EventEmitter) Emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.events <- ev:
		return
	default:
	}

	timer := time.NewTimer(emitGrace)
	defer timer.Stop()
	select {
	case e.events <- ev:
	case <-timer.C:
		if n := e.dropped.Add(1); n%10 == 1 {
			debugLog("[events] buffer full, dropped %s (%d dropped so far)", ev.Type, n)
		}
	}
}

// DroppedCount returns how many events were dropped on a full buffer.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.dropped.Load()
}

// Events returns the channel the consumer reads. It is closed by Close.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close stops accepting events and closes the channel once in-flight Emit
// calls have returned. It is safe to call more than once and concurrently
// with Emit.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}

var _ EventSink = (*EventEmitter)(nil)
