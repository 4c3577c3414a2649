package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jit/internal/engine"
	"github.com/ShayCichocki/jit/internal/tui"
)

var (
	askVerbose bool
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <request>",
	Short: "Answer a single request and exit",
	Long: `Answer one request the same way the interactive chat does, then exit.

The request joins the conversation session, so later requests see it as
history.

Examples:
  jit ask "What is in the README?"
  jit ask --verbose "Compare the weather in Oslo and Rome"
  jit ask --new-session --json "Summarize main.go"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "Print progress events to stderr")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(needEngine)
	if err != nil {
		return err
	}
	defer rt.Close()

	if askVerbose {
		rt.events.Add(&eventPrinter{w: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	resp := rt.facade.Respond(ctx, strings.Join(args, " "))

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	fmt.Println(resp.Text)
	return nil
}

var (
	statusColor = color.New(color.FgCyan)
	lineColor   = color.New(color.FgHiBlack)
)

// eventPrinter writes events the way the chat view shows them. Subtasks run
// in parallel, so writes are serialized.
type eventPrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *eventPrinter) Emit(e engine.Event) {
	status, line := tui.DescribeEvent(e)
	p.mu.Lock()
	defer p.mu.Unlock()
	if status != "" {
		statusColor.Fprintf(p.w, "... %s\n", status)
	}
	if line != "" {
		lineColor.Fprintf(p.w, "    %s\n", line)
	}
}
