package engine

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/jit/internal/capability"
)

// Invocation is one call to the reasoning backend.
type Invocation struct {
	// Name labels the call in logs, e.g. "Agent_fetch" or "Synthesizer".
	Name string
	// Instructions is the system prompt.
	Instructions string
	// Request is the user message.
	Request string
	// Providers are the tools the backend may use. May be empty.
	Providers []capability.Provider
	// Model is the model identity to use for this attempt.
	Model string
}

// Backend executes instructions against a model and returns its text answer.
type Backend interface {
	Invoke(ctx context.Context, inv Invocation) (string, error)
}

// BackendFunc adapts a function to a Backend.
type BackendFunc func(ctx context.Context, inv Invocation) (string, error)

// Invoke calls f(ctx, inv).
func (f BackendFunc) Invoke(ctx context.Context, inv Invocation) (string, error) {
	return f(ctx, inv)
}

// ProviderError reports that a model provider rejected or failed a call.
// Other errors from a Backend are treated as generic failures; both move the
// fallback chain on to the next model.
type ProviderError struct {
	Model string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
