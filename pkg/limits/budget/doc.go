// Package budget accounts for model spend and enforces spending limits.
//
// # Overview
//
// The budget Engine prices every model call with the shared token counter
// and the cost calculator, appends it to the ledger, and derives a user's
// budget status from the ledger on demand. Two calendar windows are
// enforced together:
//
//   - Daily: [UTC midnight, next UTC midnight)
//   - Monthly: [first of the UTC month, first of the next UTC month)
//
// Status is never stored. Each call sums the ledger again, so the state
// (ok, warning, exceeded) follows spend without a persisted state machine.
//
// # Usage
//
//	engine, err := budget.NewEngine(store, counter, calculator,
//	    budget.LimitsFromConfig(cfg.Budget),
//	    budget.WithMetrics(collector),
//	)
//
//	decision, err := engine.CanProceed(ctx, userID, decimal.NewFromFloat(0.01))
//	if err != nil {
//	    logger.Warn("budget check failed open", "error", err)
//	}
//	if !decision.Allowed {
//	    return decision.Reason
//	}
//
//	// ... call the model ...
//
//	engine.TrackUsage(ctx, userID, prompt, reply, "chat", model)
//	if msg, ok := engine.WarningMessage(ctx, userID); ok {
//	    reply += "\n\n" + msg
//	}
//
// # Failure Policy
//
// Accounting bugs must not take the assistant down. Ledger reads fail open
// (zero spend, request allowed) and usage writes are best-effort. Every
// swallowed error is still returned to the caller and counted in the
// samantha_store_errors_total metric.
package budget
