package server

import (
	"encoding/json"

	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/pkg/models"
)

// Frame types sent by clients.
const (
	FrameMessage = "message"
	FramePing    = "ping"
)

// Frame types sent by the server.
const (
	FrameEvent    = "event"
	FrameResponse = "response"
	FrameError    = "error"
	FramePong     = "pong"
)

// IncomingFrame is a client frame: {"type":"message","content":"..."} or
// {"type":"ping"}.
type IncomingFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// OutgoingFrame is a server frame. Which fields are set depends on Type.
type OutgoingFrame struct {
	Type string `json:"type"`
	// Event is set on event frames.
	Event *engine.Event `json:"event,omitempty"`
	// Content, RunID and Path are set on response frames.
	Content string           `json:"content,omitempty"`
	RunID   string           `json:"run_id,omitempty"`
	Path    models.RoutePath `json:"path,omitempty"`
	// Message is set on error frames.
	Message string `json:"message,omitempty"`
}

func encodeFrame(f OutgoingFrame) ([]byte, error) {
	return json.Marshal(f)
}

func errorFrame(message string) OutgoingFrame {
	return OutgoingFrame{Type: FrameError, Message: message}
}
