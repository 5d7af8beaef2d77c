// Package limits groups the spending and pacing controls applied before a
// message reaches the model.
//
// # Architecture
//
// The package is organized into sub-packages:
//
//   - budget: daily and monthly spend windows over the usage ledger,
//     admission decisions, warnings and usage statistics
//   - ratelimit: per-user message pacing for the Telegram transport
//
// # Usage
//
//	engine, _ := budget.NewEngine(store, counter, calculator, budget.LimitsFromConfig(cfg.Budget))
//
//	decision, err := engine.CanProceed(ctx, userID, estimate)
//	if !decision.Allowed {
//	    return decision.Reason
//	}
//	// call the model, then
//	engine.TrackUsage(ctx, userID, prompt, reply, "chat", model)
//
// Budget checks fail open: a ledger read error allows the turn and is logged.
package limits
