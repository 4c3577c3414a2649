package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jit/pkg/models"
)

var (
	historyLimit int
	historyAll   bool
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs",
	Long: `Show the most recent recorded runs of the current session, newest first.
Use --all to include every session. With a run ID, print that run in full,
including its plan, as JSON.

Examples:
  jit history -n 20
  jit history --all
  jit history 3f1c9a0e-...
  jit history --purge 720h`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(needState)
		if err != nil {
			return err
		}
		defer rt.Close()

		if len(args) == 1 {
			return showRun(rt, args[0])
		}
		if historyPurge > 0 {
			n, err := rt.db.PurgeOldRuns(historyPurge)
			if err != nil {
				return err
			}
			printStatus("✓", fmt.Sprintf("Purged %d runs older than %s", n, historyPurge), color.FgGreen)
			return nil
		}

		var runs []models.RunRecord
		if historyAll {
			runs, err = rt.db.RecentRuns(historyLimit)
		} else {
			runs, err = rt.db.RecentRunsForSession(rt.session.ID(), historyLimit)
		}
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if len(runs) == 0 {
			printStatus("-", "No runs recorded", color.FgYellow)
			return nil
		}
		printRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "Include runs from every session")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete finished runs older than this instead of listing")
}

func showRun(rt *runtime, id string) error {
	run, err := rt.db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run %s", id)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

const historyRequestWidth = 60

func printRuns(w io.Writer, runs []models.RunRecord) {
	for _, r := range runs {
		status := string(r.Status)
		switch r.Status {
		case models.RunDone:
			status = color.GreenString(status)
		case models.RunInterrupted:
			status = color.YellowString(status)
		}
		fmt.Fprintf(w, "%s  %-6s  %s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Path,
			status,
			truncate(r.Request, historyRequestWidth))
	}
}

// truncate shortens s to at most n runes on a single line.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
