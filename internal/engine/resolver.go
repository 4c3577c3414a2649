package engine

import (
	"github.com/ShayCichocki/jit/internal/capability"
	"github.com/ShayCichocki/jit/pkg/models"
)

// Resolver selects the providers a subtask needs. With a registry it uses the
// registry's tool name index; without one it scans the providers directly.
type Resolver struct {
	index *capability.Registry
}

// NewResolver creates a resolver. index may be nil.
func NewResolver(index *capability.Registry) *Resolver {
	return &Resolver{index: index}
}

// Resolve returns the providers exposing at least one of the subtask's tools,
// deduplicated by identity and in the order given. A subtask without tools,
// or one whose tools nobody offers, gets every provider.
//
// The index answers only for providers it holds. Providers it does not know,
// such as ones loaded after it was built, are checked against their own tool
// names.
func (r *Resolver) Resolve(s models.Subtask, providers []capability.Provider) []capability.Provider {
	if len(s.Tools) == 0 || len(providers) == 0 {
		return providers
	}

	var index *capability.Registry
	var indexed []capability.Provider
	if r != nil && r.index != nil {
		index = r.index
		indexed = index.ProvidersFor(s.Tools)
	}

	wanted := make(map[string]bool, len(s.Tools))
	for _, t := range s.Tools {
		wanted[t] = true
	}

	var needed []capability.Provider
	for _, p := range providers {
		if p == nil || containsProvider(needed, p) {
			continue
		}
		if index.Contains(p) {
			if !containsProvider(indexed, p) {
				continue
			}
		} else if !exposesAny(p, wanted) {
			continue
		}
		needed = append(needed, p)
	}

	if len(needed) == 0 {
		return providers
	}
	return needed
}

func containsProvider(ps []capability.Provider, p capability.Provider) bool {
	for _, q := range ps {
		if capability.Same(q, p) {
			return true
		}
	}
	return false
}

func exposesAny(p capability.Provider, wanted map[string]bool) bool {
	for _, t := range p.ToolNames() {
		if wanted[t] {
			return true
		}
	}
	return false
}
