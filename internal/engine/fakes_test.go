package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ShayCichocki/jit/internal/capability"
)

// fakeBackend records invocations and answers through respond.
type fakeBackend struct {
	mu      sync.Mutex
	calls   []Invocation
	respond func(ctx context.Context, inv Invocation) (string, error)
}

func (f *fakeBackend) Invoke(ctx context.Context, inv Invocation) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()
	if f.respond == nil {
		return "done " + strings.TrimPrefix(inv.Name, "Agent_"), nil
	}
	return f.respond(ctx, inv)
}

func (f *fakeBackend) invocations() []Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Invocation(nil), f.calls...)
}

// callsNamed counts invocations with the given name.
func (f *fakeBackend) callsNamed(name string) int {
	n := 0
	for _, inv := range f.invocations() {
		if inv.Name == name {
			n++
		}
	}
	return n
}

// toolProvider is a capability.Provider with fixed tool names.
type toolProvider struct {
	name  string
	tools []string
}

func (p *toolProvider) Name() string        { return p.name }
func (p *toolProvider) ToolNames() []string { return p.tools }
func (p *toolProvider) Tools() []capability.ToolSpec {
	var specs []capability.ToolSpec
	for _, t := range p.tools {
		specs = append(specs, capability.ToolSpec{Name: t})
	}
	return specs
}
func (p *toolProvider) Invoke(context.Context, string, json.RawMessage) (capability.Result, error) {
	return capability.Result{}, nil
}

func names(ps []capability.Provider) string {
	var out []string
	for _, p := range ps {
		out = append(out, p.Name())
	}
	return strings.Join(out, ",")
}

// recorder is an EventSink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
