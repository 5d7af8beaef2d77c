// Package retention deletes conversation turns and usage events that are
// older than the configured retention window.
//
// Pruning is an explicit maintenance operation. It runs on demand
// (`samantha prune`) or on a cron schedule while serving:
//
//	pruner := retention.NewPruner(store, cfg.Retention, retention.WithMetrics(collector))
//	if err := pruner.Start(ctx); err != nil {
//		return err
//	}
//	defer pruner.Stop()
//
// Memory profiles (summary and long-term keys) are kept indefinitely.
package retention
