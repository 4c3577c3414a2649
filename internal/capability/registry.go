package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Registry is an immutable, discovery-ordered set of providers with a
// tool name index. Build a new Registry to change the set.
type Registry struct {
	providers []Provider
	// index maps tool name to provider positions, ascending.
	index map[string][]int
}

// NewRegistry indexes providers in the order given. Providers sharing a
// name keep only the first occurrence.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{index: make(map[string][]int)}
	seen := make(map[string]bool)
	for _, p := range providers {
		if p == nil || seen[p.Name()] {
			continue
		}
		seen[p.Name()] = true
		pos := len(r.providers)
		r.providers = append(r.providers, p)
		for _, tool := range p.ToolNames() {
			idx := r.index[tool]
			if len(idx) > 0 && idx[len(idx)-1] == pos {
				continue
			}
			r.index[tool] = append(idx, pos)
		}
	}
	return r
}

// Providers returns the providers in discovery order.
func (r *Registry) Providers() []Provider {
	if r == nil {
		return nil
	}
	return append([]Provider(nil), r.providers...)
}

// Len returns the number of providers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.providers)
}

// ToolNames returns every tool name, deduplicated, in discovery order.
func (r *Registry) ToolNames() []string {
	if r == nil {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, p := range r.providers {
		for _, tool := range p.ToolNames() {
			if !seen[tool] {
				seen[tool] = true
				names = append(names, tool)
			}
		}
	}
	return names
}

// ProvidersFor returns the providers exposing at least one of the named
// tools, deduplicated, in discovery order. Returns nil if none match.
func (r *Registry) ProvidersFor(names []string) []Provider {
	if r == nil {
		return nil
	}
	hit := make([]bool, len(r.providers))
	matched := false
	for _, name := range names {
		for _, pos := range r.index[name] {
			hit[pos] = true
			matched = true
		}
	}
	if !matched {
		return nil
	}
	var out []Provider
	for pos, ok := range hit {
		if ok {
			out = append(out, r.providers[pos])
		}
	}
	return out
}

// Contains reports whether p itself, not merely a provider with p's name,
// is in the registry.
func (r *Registry) Contains(p Provider) bool {
	if r == nil {
		return false
	}
	for _, q := range r.providers {
		if Same(q, p) {
			return true
		}
	}
	return false
}

// Same reports whether a and b are the same provider. Values of types that
// cannot be compared fall back to comparing names.
func Same(a, b Provider) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if !ta.Comparable() {
		return a.Name() == b.Name()
	}
	return a == b
}

// Lookup returns the first provider exposing tool.
func (r *Registry) Lookup(tool string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	idx := r.index[tool]
	if len(idx) == 0 {
		return nil, false
	}
	return r.providers[idx[0]], true
}

// Invoke runs tool on the first provider exposing it.
func (r *Registry) Invoke(ctx context.Context, tool string, args json.RawMessage) (Result, error) {
	p, ok := r.Lookup(tool)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
	return p.Invoke(ctx, tool, args)
}

// Describe renders one "provider: tool, tool" line per provider.
func (r *Registry) Describe() string {
	if r.Len() == 0 {
		return "No tools available"
	}
	var sb strings.Builder
	for _, p := range r.providers {
		fmt.Fprintf(&sb, "%s: %s\n", p.Name(), strings.Join(p.ToolNames(), ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}
