// Package metrics provides Prometheus metrics collection for Samantha.
//
// # Overview
//
// The Collector owns a private registry and records conversation turns,
// model calls, spend, budget decisions, memory consolidation and the
// search cache. Every method is a no-op on a nil or disabled collector, so
// engines take an optional *Collector and never branch on it.
//
// # Metrics Categories
//
//   - Turn Metrics: turns by outcome, turn duration, search augmentation
//   - Model Metrics: model calls, latency and reported tokens
//   - Budget Metrics: tracked cost, budget decisions and warnings
//   - Memory Metrics: consolidations, swallowed store errors, pruned rows
//   - Cache Metrics: search cache hits, misses, size and evictions
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	collector.RecordModelCall("gpt-4o-mini", "success", 800*time.Millisecond, 420, 96)
//	collector.RecordUsage("gpt-4o-mini", "chat", 0.000121)
//	collector.RecordBudgetDecision("allowed")
//
// # Prometheus Endpoint
//
// Handler serves the registry in Prometheus/OpenMetrics format. The HTTP
// server mounts it at MetricsConfig.Path:
//
//	r.Handle(cfg.Path, collector.Handler())
package metrics
