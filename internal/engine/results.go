package engine

import "sync"

// Result is one recorded subtask outcome.
type Result struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ResultSet maps subtask IDs to their textual outcome, remembering insertion
// order. It is append-only: the first value recorded for an ID wins.
type ResultSet struct {
	mu    sync.RWMutex
	order []string
	texts map[string]string
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{texts: make(map[string]string)}
}

// Record stores the outcome for id. Returns false if id was already recorded.
func (r *ResultSet) Record(id, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.texts[id]; exists {
		return false
	}
	r.texts[id] = text
	r.order = append(r.order, id)
	return true
}

// Get returns the outcome recorded for id.
func (r *ResultSet) Get(id string) (string, bool) {
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	text, ok := r.texts[id]
	return text, ok
}

// Len returns the number of recorded outcomes.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// IDs returns recorded IDs in insertion order.
func (r *ResultSet) IDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Entries returns recorded outcomes in insertion order.
func (r *ResultSet) Entries() []Result {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Result, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, Result{ID: id, Text: r.texts[id]})
	}
	return entries
}
