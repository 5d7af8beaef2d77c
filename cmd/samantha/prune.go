package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Spandai/samantha-telegram-agent/pkg/cli"
	"github.com/Spandai/samantha-telegram-agent/pkg/retention"
)

var pruneFlags struct {
	days    int
	keepUse bool
	dryRun  bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete turns and usage events older than the retention window",
	Long: `Delete conversation turns and usage events older than the retention window.

Summaries and profiles are never pruned. serve runs the same pruning on
retention.prune_schedule; this command runs it once.

Examples:
  samantha prune
  samantha prune --days 90 --keep-usage
  samantha prune --dry-run`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().IntVar(&pruneFlags.days, "days", 0, "override retention.days")
	pruneCmd.Flags().BoolVar(&pruneFlags.keepUse, "keep-usage", false, "keep the usage ledger")
	pruneCmd.Flags().BoolVar(&pruneFlags.dryRun, "dry-run", false, "print the cutoff without deleting")
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if pruneFlags.days > 0 {
		cfg.Retention.Days = pruneFlags.days
	}
	if pruneFlags.keepUse {
		cfg.Retention.PruneUsage = false
	}
	if cfg.Retention.Days <= 0 {
		return cli.NewConfigError("retention.days", "must be positive to prune")
	}

	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	pruner := retention.NewPruner(a.store, cfg.Retention,
		retention.WithMetrics(a.metrics),
		retention.WithLogger(a.logger),
	)

	out := cmd.OutOrStdout()
	if pruneFlags.dryRun {
		fmt.Fprintf(out, "Would delete records older than %s\n", pruner.Cutoff().Format(time.RFC3339))
		return nil
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	res, err := pruner.Prune(ctx)
	if err != nil {
		return cli.NewCommandError("prune", err)
	}
	fmt.Fprintf(out, "✓ Deleted %d turns and %d usage events older than %s\n",
		res.Turns, res.Usage, res.Cutoff.Format(time.RFC3339))
	return nil
}
