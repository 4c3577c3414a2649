package models

// RoutePath is the router's classification of a request.
type RoutePath string

const (
	// RouteDirect answers the request without tools or planning.
	RouteDirect RoutePath = "direct"
	// RouteAgent plans a subtask graph and executes it with tools.
	RouteAgent RoutePath = "agent"
)

// Valid returns true if the path is a known value.
func (p RoutePath) Valid() bool {
	switch p {
	case RouteDirect, RouteAgent:
		return true
	default:
		return false
	}
}

// RouteDecision is the router's output for a single request.
type RouteDecision struct {
	Path      RoutePath `json:"path"`
	Reasoning string    `json:"reasoning"`
}
