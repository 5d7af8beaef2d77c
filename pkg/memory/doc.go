// Package memory implements the tiered conversation memory.
//
// # Tiers
//
//   - Short term: the newest turns of the append-only turn log.
//   - Medium term: one rolling free-text summary per user, regenerated by a
//     summarizer once it is older than the consolidation interval.
//   - Long term: a key-value profile of durable facts and preferences,
//     merged one key at a time.
//
// The Engine renders the tiers into the memory block of the system prompt
// and projects the preference keys into adaptive prompt directives. It does
// not call any model itself: the composer asks ShouldConsolidate, runs the
// summarizer over SummaryTurns and hands the result to Consolidate.
//
// # Usage
//
//	engine, err := memory.NewEngine(store, counter,
//	    memory.SettingsFromConfig(cfg.Agent, cfg.Memory),
//	    memory.WithMetrics(collector),
//	)
//
//	_ = engine.RecordTurn(ctx, userID, message, true)
//	block, err := engine.Context(ctx, userID)
//	directives := engine.AdaptiveDirectives(ctx, userID)
package memory
