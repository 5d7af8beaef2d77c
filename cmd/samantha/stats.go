package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Spandai/samantha-telegram-agent/pkg/cli"
	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
	"github.com/Spandai/samantha-telegram-agent/pkg/memory"
)

var statsFlags struct {
	days   int
	output string
}

var statsCmd = &cobra.Command{
	Use:   "stats <user-id>",
	Short: "Show a user's memory and usage statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().IntVar(&statsFlags.days, "days", 30, "usage window in days")
	statsCmd.Flags().StringVarP(&statsFlags.output, "output", "o", "text", "output format (text, json)")
}

type statsReport struct {
	UserID string            `json:"user_id"`
	Memory memory.Stats      `json:"memory"`
	Usage  budget.UsageStats `json:"usage"`
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(statsFlags.output)
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

	report := statsReport{UserID: args[0]}
	if report.Memory, err = a.memory.Stats(ctx, report.UserID); err != nil {
		return cli.NewCommandError("stats", err)
	}
	if report.Usage, err = a.budget.UsageStats(ctx, report.UserID, statsFlags.days); err != nil {
		return cli.NewCommandError("stats", err)
	}

	return cli.Render(cmd.OutOrStdout(), format, formatStatsReport(report), report)
}

func formatStatsReport(r statsReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User %s\n\n", r.UserID)

	sb.WriteString("Memory\n")
	fmt.Fprintf(&sb, "  Turns stored:    %d\n", r.Memory.TotalTurns)
	fmt.Fprintf(&sb, "  Tokens stored:   %s\n", humanize.Comma(r.Memory.TotalTokens))
	if r.Memory.HasSummary {
		fmt.Fprintf(&sb, "  Summary:         yes (%s old)\n", r.Memory.SummaryAge.Round(time.Second))
	} else {
		sb.WriteString("  Summary:         no\n")
	}
	fmt.Fprintf(&sb, "  Profile keys:    %d\n\n", r.Memory.LongTermKeys)

	fmt.Fprintf(&sb, "Usage (last %d days)\n", r.Usage.DaysAnalyzed)
	fmt.Fprintf(&sb, "  Messages:        %d\n", r.Usage.TotalMessages)
	fmt.Fprintf(&sb, "  Tokens:          %s\n", humanize.Comma(int64(r.Usage.TotalTokens)))
	fmt.Fprintf(&sb, "  Total cost:      $%s\n", r.Usage.TotalCost.StringFixed(4))
	fmt.Fprintf(&sb, "  Avg per message: $%s", r.Usage.AvgCostPerMessage.StringFixed(4))
	return sb.String()
}
