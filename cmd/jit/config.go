package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/jit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Show or change configuration",
	Long: `With no arguments, print every setting with its effective value.
With a key, print that setting. With a key and a value, write it to the user
config file. Model chains take comma-separated lists.

Examples:
  jit config
  jit config models.agent
  jit config models.agent claude-sonnet-4-5-20250929,claude-haiku-4-5-20251001
  jit config engine.max_parallel 4`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 0:
		for _, key := range config.Keys() {
			value, err := config.Get(key)
			if err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", key, displayValue(key, value))
		}
		return nil

	case 1:
		value, err := config.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(displayValue(args[0], value))
		return nil

	default:
		if err := config.Set(args[0], args[1]); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Set %s in %s", args[0], config.GetUserConfigPath()), color.FgGreen)
		return nil
	}
}

// displayValue formats a setting for printing. Secrets are masked.
func displayValue(key string, value interface{}) string {
	var s string
	switch v := value.(type) {
	case []string:
		s = strings.Join(v, ",")
	case []interface{}:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprint(p)
		}
		s = strings.Join(parts, ",")
	default:
		s = fmt.Sprint(v)
	}
	if key == "anthropic.api_key" {
		return config.MaskAPIKey(s)
	}
	return s
}
