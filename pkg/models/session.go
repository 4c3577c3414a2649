package models

import "time"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation session.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

// Label returns the display label used when a turn is rendered as context.
func (t Turn) Label() string {
	if t.Role == RoleUser {
		return "User"
	}
	return "Assistant"
}

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunDone        RunStatus = "done"
	RunInterrupted RunStatus = "interrupted"
)

// RunRecord is the persisted summary of one orchestrated request.
type RunRecord struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// SessionID is the conversation session the run belongs to.
	SessionID string `json:"session_id"`
	// Request is the user's request text.
	Request string `json:"request"`
	// Status is running until the response is recorded.
	Status RunStatus `json:"status"`
	// Path is the route that was taken.
	Path RoutePath `json:"path"`
	// Reasoning is the router's explanation for the route.
	Reasoning string `json:"reasoning,omitempty"`
	// Graph is the executed plan, nil for direct answers.
	Graph *ExecutionGraph `json:"graph,omitempty"`
	// Response is the final text returned to the user.
	Response string `json:"response"`
	// StartedAt is when the request was received.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the response was produced.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
