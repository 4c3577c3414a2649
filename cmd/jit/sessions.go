package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List conversation sessions",
	Long: `List conversation sessions, most recently used first, with the size of
their memory. Select one with --session, or --last for the newest.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(needState)
		if err != nil {
			return err
		}
		defer rt.Close()

		sessions, err := rt.db.ListSessions()
		if err != nil {
			return err
		}
		for _, s := range sessions {
			status, err := rt.db.MemoryStatus(s.ID)
			if err != nil {
				return err
			}
			marker := " "
			if s.ID == rt.session.ID() {
				marker = color.GreenString("*")
			}
			fmt.Printf("%s %-36s  %s  %3d turns  ~%d tokens\n",
				marker, s.ID, s.UpdatedAt.Local().Format("2006-01-02 15:04"), status.Turns, status.Tokens)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete sessions and their memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(needState)
		if err != nil {
			return err
		}
		defer rt.Close()

		for _, id := range args {
			info, err := rt.db.GetSession(id)
			if err != nil {
				return err
			}
			if info == nil {
				printStatus("!", "No session "+id, color.FgYellow)
				continue
			}
			if err := rt.db.DeleteSession(id); err != nil {
				return err
			}
			printStatus("✓", "Deleted session "+id, color.FgGreen)
		}
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
