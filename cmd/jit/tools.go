package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var toolsVerbose bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tool providers",
	Long: `List every tool provider and the tools it exposes: the builtin
filesystem and shell providers (tools.builtin) and the command providers
declared in the tools.manifest file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(needTools)
		if err != nil {
			return err
		}
		defer rt.Close()

		registry := rt.tools.Current()
		if registry.Len() == 0 {
			printStatus("!", "No tools available", color.FgYellow)
			return nil
		}

		bold := color.New(color.Bold)
		for _, p := range registry.Providers() {
			bold.Printf("%s\n", p.Name())
			for _, spec := range p.Tools() {
				if toolsVerbose && spec.Description != "" {
					fmt.Printf("  %-12s %s\n", spec.Name, firstLine(spec.Description))
					continue
				}
				fmt.Printf("  %s\n", spec.Name)
			}
		}
		return nil
	},
}

func init() {
	toolsCmd.Flags().BoolVarP(&toolsVerbose, "verbose", "v", false, "Show tool descriptions")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
