package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "samantha",
	Short: "Samantha - conversational assistant with memory and budget control",
	Long: `Samantha is a conversational assistant that remembers its users and keeps
their spending under control.

Every turn goes through:
  - A budget check against daily and monthly limits
  - Short, medium and long term memory rendered into the prompt
  - Optional web search enrichment
  - Usage accounting and background memory consolidation

The assistant is reachable through Telegram, an HTTP API, MCP over stdio
and an interactive terminal chat.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns its error after printing it.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
