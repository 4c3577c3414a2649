package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	sessionID   string
	newSession  bool
	lastSession bool
)

var rootCmd = &cobra.Command{
	Use:   "jit",
	Short: "Just-in-time agent graphs",
	Long: `jit answers requests by routing them to a direct answer or to a plan of
tool-using subtasks, which it runs in dependency order and merges into one
response.

With no arguments, launches an interactive chat. Inside it, type a request or
one of: tools, memory:status, memory:clear, quit.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Read configuration from this file only")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Conversation session to use (default \"default\")")
	rootCmd.PersistentFlags().BoolVar(&newSession, "new-session", false, "Start a fresh conversation session")
	rootCmd.PersistentFlags().BoolVar(&lastSession, "last", false, "Continue the most recently used session")
	rootCmd.MarkFlagsMutuallyExclusive("session", "new-session", "last")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
