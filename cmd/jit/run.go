package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jit/internal/decompose"
	"github.com/ShayCichocki/jit/internal/planfile"
	"github.com/ShayCichocki/jit/pkg/models"
)

var (
	runRequest string
	runVars    map[string]string
	runJSON    bool
	runVerbose bool
	runDryRun  bool
)

var runCmd = &cobra.Command{
	Use:   "run <graph-file>",
	Short: "Execute a hand-written execution graph",
	Long: `Execute an execution graph from a JSON, YAML or HCL file, skipping the
router and planner.

HCL graphs may reference variables as var.<name>; set them with --var.

Examples:
  jit run weather.hcl --request "Compare the weather in Oslo and Rome"
  jit run plan.yaml --request "Audit the repo" --var dir=./internal
  jit run plan.json --request "..." --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	runCmd.Flags().StringVarP(&runRequest, "request", "r", "", "The request the graph answers (required)")
	runCmd.Flags().StringToStringVar(&runVars, "var", nil, "HCL variable as name=value (repeatable)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run report as JSON")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print progress events to stderr")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Validate the graph without running it")
	runCmd.MarkFlagRequired("request")
}

func runGraph(cmd *cobra.Command, args []string) error {
	path := args[0]
	eg, err := planfile.Load(path, runVars)
	if err != nil {
		return err
	}

	needs := needEngine
	if runDryRun {
		needs = needTools
	}
	rt, err := newRuntime(needs)
	if err != nil {
		return err
	}
	defer rt.Close()

	registry := rt.tools.Current()
	result := decompose.NewValidator(registry.ToolNames()).Validate(eg)
	for _, w := range result.Warnings {
		printStatus("!", w, color.FgYellow)
	}
	if !result.Valid {
		for _, e := range result.Errors {
			printStatus("✗", e, color.FgRed)
		}
		return fmt.Errorf("invalid graph: %s", path)
	}
	if runDryRun {
		printStatus("✓", fmt.Sprintf("%d subtasks, up to %d in parallel", eg.Len(), result.Parallelism), color.FgGreen)
		return nil
	}

	if runVerbose {
		rt.events.Add(&eventPrinter{w: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	record := &models.RunRecord{
		ID:        uuid.New().String(),
		SessionID: rt.session.ID(),
		Request:   runRequest,
		Status:    models.RunRunning,
		Path:      models.RouteAgent,
		Reasoning: "graph file " + path,
		Graph:     eg,
		StartedAt: time.Now(),
	}
	report := rt.scheduler.Run(ctx, eg, runRequest, registry.Providers())
	record.Response = report.Output
	record.Status = models.RunDone
	record.FinishedAt = time.Now()
	if err := rt.db.RecordRun(record); err != nil {
		rt.logger.Log("[run] record run %s: %v", record.ID, err)
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Println(report.Output)
	switch {
	case report.Cancelled:
		printStatus("!", "Run cancelled", color.FgYellow)
	case report.Stalled:
		printStatus("!", fmt.Sprintf("Graph stalled; never ran: %v", report.Remaining), color.FgYellow)
	}
	return nil
}
