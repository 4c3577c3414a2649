package decompose

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/pkg/models"
)

// FallbackReasoning is the reasoning attached when no router model answered.
const FallbackReasoning = "Fallback due to model errors"

// Router classifies requests as direct or agent.
type Router struct {
	completer Completer
	chain     *engine.Chain
	debugLog  func(format string, args ...interface{})
}

// NewRouter creates a router that walks models in order. opts bound and
// retry each call.
func NewRouter(completer Completer, models []string, opts ...engine.ChainOption) *Router {
	return &Router{
		completer: completer,
		chain:     engine.NewChain(models, opts...),
		debugLog:  func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (r *Router) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		r.debugLog = fn
	}
}

// Route returns the first usable decision from the model chain, or a direct
// decision when every model fails. Only context cancellation is returned as
// an error.
func (r *Router) Route(ctx context.Context, request, history string) (models.RouteDecision, error) {
	system := RouterInstructions(history)

	var decision models.RouteDecision
	_, err := r.chain.Run(ctx, "router", func(ctx context.Context, model string) (string, error) {
		response, err := r.completer.Complete(ctx, model, system, request)
		if err != nil {
			r.debugLog("[router] model %s failed: %v", model, err)
			return "", err
		}

		d, err := ParseRoute(response)
		if err != nil {
			r.debugLog("[router] model %s returned an unusable decision: %v", model, err)
			return "", engine.Permanent(err)
		}
		r.debugLog("[router] model %s routed to %s: %s", model, d.Path, d.Reasoning)
		decision = d
		return response, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.RouteDecision{}, ctxErr
		}
		r.debugLog("[router] all models failed, defaulting to direct path")
		return models.RouteDecision{Path: models.RouteDirect, Reasoning: FallbackReasoning}, nil
	}
	return decision, nil
}

// RouterInstructions renders the router system prompt.
func RouterInstructions(history string) string {
	if history == "" {
		return routerPrompt
	}
	return fmt.Sprintf(routerContextPrompt, history) + routerPrompt
}

// ParseRoute decodes the first JSON object in a response into a decision.
func ParseRoute(response string) (models.RouteDecision, error) {
	var decision models.RouteDecision
	if err := decodeFirstObject(response, &decision); err != nil {
		return models.RouteDecision{}, err
	}
	decision.Path = models.RoutePath(strings.ToLower(strings.TrimSpace(string(decision.Path))))
	if !decision.Path.Valid() {
		return models.RouteDecision{}, fmt.Errorf("unknown route path %q", decision.Path)
	}
	return decision, nil
}
