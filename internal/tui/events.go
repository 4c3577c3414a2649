package tui

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/jit/internal/engine"
)

// DescribeEvent maps an event to a new status line and a transcript line.
// Either may be empty.
func DescribeEvent(e engine.Event) (status, line string) {
	switch e.Type {
	case engine.EventRouting, engine.EventPlanning, engine.EventResponding:
		return e.Message, ""
	case engine.EventRouted:
		line = "route: " + string(e.Path)
		if e.Reasoning != "" {
			line += " (" + e.Reasoning + ")"
		}
		return "", line
	case engine.EventPlanned:
		return "", "plan: " + strings.Join(e.Subtasks, ", ")
	case engine.EventExecuting:
		return fmt.Sprintf("Executing %d subtasks...", len(e.Subtasks)), ""
	case engine.EventSubtaskStarted:
		return "Running " + e.SubtaskID + "...", ""
	case engine.EventSubtaskCompleted:
		return "", "done: " + e.SubtaskID
	case engine.EventSubtaskSkipped:
		return "", fmt.Sprintf("skipped: %s (%s)", e.SubtaskID, e.Message)
	case engine.EventGraphStalled:
		return "", "stalled: " + strings.Join(e.Subtasks, ", ")
	case engine.EventToolCall:
		if e.SubtaskID == "" {
			return e.Message, ""
		}
		return e.SubtaskID + ": " + e.Message, ""
	case engine.EventSynthesizing:
		return "Combining results...", ""
	default:
		return "", ""
	}
}
