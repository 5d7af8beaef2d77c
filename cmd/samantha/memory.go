package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Spandai/samantha-telegram-agent/pkg/cli"
	"github.com/Spandai/samantha-telegram-agent/pkg/memory"
)

var memoryFlags struct {
	output string
	yes    bool
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit a user's memory",
	Long: `Inspect and edit the memory tiers of a user.

Short-term memory is the recent turn log, medium-term memory the rolling
summary and long-term memory the key-value profile.

Examples:
  # Show the memory context rendered into prompts
  samantha memory show 123456789

  # Store a profile fact
  samantha memory set 123456789 user_preference "Réponses courtes"

  # Summarize the recent turns now
  samantha memory consolidate 123456789

  # Clear the turn log, keep the profile
  samantha memory reset 123456789

  # Delete everything stored about a user
  samantha memory forget 123456789 --yes`,
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show the memory context and profile of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryShow,
}

var memorySetCmd = &cobra.Command{
	Use:   "set <user-id> <key> <value>",
	Short: "Store a long-term profile entry",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runMemorySet,
}

var memoryResetCmd = &cobra.Command{
	Use:   "reset <user-id>",
	Short: "Clear the turn log of a user, keeping the profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryReset,
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget <user-id>",
	Short: "Delete the turns, summary and profile of a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryForget,
}

var memoryConsolidateCmd = &cobra.Command{
	Use:   "consolidate <user-id>",
	Short: "Summarize the recent turns of a user now",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryConsolidate,
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryShowCmd, memorySetCmd, memoryResetCmd, memoryForgetCmd, memoryConsolidateCmd)

	memoryShowCmd.Flags().StringVarP(&memoryFlags.output, "output", "o", "text", "output format (text, json)")
	memoryForgetCmd.Flags().BoolVarP(&memoryFlags.yes, "yes", "y", false, "confirm deletion")
}

type memoryReport struct {
	UserID   string         `json:"user_id"`
	Context  string         `json:"context"`
	LongTerm map[string]any `json:"long_term"`
	Stats    memory.Stats   `json:"stats"`
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(memoryFlags.output)
	if err != nil {
		return err
	}
	a, err := openOffline()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	report := memoryReport{UserID: args[0]}
	if report.Context, err = a.memory.Context(ctx, report.UserID); err != nil {
		return cli.NewCommandError("memory show", err)
	}
	if report.LongTerm, err = a.memory.LongTerm(ctx, report.UserID); err != nil {
		return cli.NewCommandError("memory show", err)
	}
	if report.Stats, err = a.memory.Stats(ctx, report.UserID); err != nil {
		return cli.NewCommandError("memory show", err)
	}

	text := report.Context
	if text == "" {
		text = fmt.Sprintf("No memory for user %s.", report.UserID)
	}
	return cli.Render(cmd.OutOrStdout(), format, text, report)
}

func runMemorySet(cmd *cobra.Command, args []string) error {
	a, err := openOffline()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	user, key := args[0], args[1]
	value := strings.Join(args[2:], " ")
	if err := a.memory.UpsertLongTerm(ctx, user, key, value); err != nil {
		return cli.NewCommandError("memory set", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s stored for user %s\n", key, user)
	return nil
}

func runMemoryReset(cmd *cobra.Command, args []string) error {
	a, err := openOffline()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	n, err := a.memory.Reset(ctx, args[0])
	if err != nil {
		return cli.NewCommandError("memory reset", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %d turns cleared for user %s\n", n, args[0])
	return nil
}

func runMemoryForget(cmd *cobra.Command, args []string) error {
	if !memoryFlags.yes {
		return cli.NewCommandError("memory forget", fmt.Errorf("deleting all memory of user %s requires --yes", args[0]))
	}
	a, err := openOffline()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	if err := a.memory.Forget(ctx, args[0]); err != nil {
		return cli.NewCommandError("memory forget", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ All memory of user %s deleted\n", args[0])
	return nil
}

func runMemoryConsolidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	if err := a.composer.Consolidate(ctx, args[0]); err != nil {
		return cli.NewCommandError("memory consolidate", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Summary updated for user %s\n", args[0])
	return nil
}

// openOffline builds the app without the model client.
func openOffline() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, false)
}
