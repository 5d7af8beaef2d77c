package main

import (
	"github.com/spf13/cobra"

	"github.com/Spandai/samantha-telegram-agent/pkg/cli"
	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
)

var budgetFlags struct {
	days   int
	output string
}

var budgetCmd = &cobra.Command{
	Use:   "budget <user-id>",
	Short: "Show a user's budget status and recent usage",
	Long: `Show the daily and monthly spend of a user against the configured limits,
followed by usage statistics over the last days.

Examples:
  samantha budget 123456789
  samantha budget 123456789 --days 30 --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runBudget,
}

func init() {
	rootCmd.AddCommand(budgetCmd)

	budgetCmd.Flags().IntVar(&budgetFlags.days, "days", 7, "usage statistics window in days")
	budgetCmd.Flags().StringVarP(&budgetFlags.output, "output", "o", "text", "output format (text, json)")
}

type budgetReport struct {
	UserID string            `json:"user_id"`
	Status *budget.Status    `json:"status"`
	Usage  budget.UsageStats `json:"usage"`
}

func runBudget(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(budgetFlags.output)
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

	user := args[0]
	status, err := a.budget.Status(ctx, user)
	if err != nil {
		return cli.NewCommandError("budget", err)
	}
	stats, err := a.budget.UsageStats(ctx, user, budgetFlags.days)
	if err != nil {
		return cli.NewCommandError("budget", err)
	}

	text := budget.FormatStatus(status) + "\n\n" + budget.FormatUsageStats(stats)
	return cli.Render(cmd.OutOrStdout(), format, text, budgetReport{UserID: user, Status: status, Usage: stats})
}
