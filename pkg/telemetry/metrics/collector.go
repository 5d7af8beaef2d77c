package metrics

import (
	"time"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector is the main orchestrator for all Prometheus metrics in Samantha.
// It owns the registry and exposes one method per recorded event.
//
// All methods are safe on a nil *Collector and on a disabled one, so
// components can take an optional collector without nil checks.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	turnMetrics     *TurnMetrics
	providerMetrics *ProviderMetrics
	costMetrics     *CostMetrics
	memoryMetrics   *MemoryMetrics
	cacheMetrics    *CacheMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry with the Go
// runtime and process collectors is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{Enabled: true, Namespace: "samantha"}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{Enabled: true}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		turnMetrics:     NewTurnMetrics(cfg, registry),
		providerMetrics: NewProviderMetrics(cfg, registry),
		costMetrics:     NewCostMetrics(cfg, registry),
		memoryMetrics:   NewMemoryMetrics(cfg, registry),
		cacheMetrics:    NewCacheMetrics(cfg, registry),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordTurn records a handled conversation turn.
//
// Parameters:
//   - outcome: "replied", "denied" or "error"
//   - duration: Total turn duration including the model call
func (c *Collector) RecordTurn(outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.turnMetrics.Record(outcome, duration)
}

// RecordSearchTriggered records that a turn was augmented with web search.
//
// Parameters:
//   - reason: "keyword" or "forced"
func (c *Collector) RecordSearchTriggered(reason string) {
	if !c.enabled() {
		return
	}
	c.turnMetrics.RecordSearch(reason)
}

// RecordPaced records a message rejected by per-user pacing.
//
// Parameters:
//   - channel: Transport that received the message (e.g., "telegram")
func (c *Collector) RecordPaced(channel string) {
	if !c.enabled() {
		return
	}
	c.turnMetrics.RecordPaced(channel)
}

// RecordModelCall records a call to the model provider.
//
// Parameters:
//   - model: Model name (e.g., "gpt-4o-mini")
//   - status: "success" or "error"
//   - latency: Call duration
//   - inputTokens, outputTokens: Token counts reported by the provider
func (c *Collector) RecordModelCall(model, status string, latency time.Duration, inputTokens, outputTokens int) {
	if !c.enabled() {
		return
	}
	c.providerMetrics.Record(model, status, latency, inputTokens, outputTokens)
}

// RecordUsage records a tracked usage event.
//
// Parameters:
//   - model: Model name
//   - messageType: "chat", "summary", ...
//   - costUSD: Event cost
func (c *Collector) RecordUsage(model, messageType string, costUSD float64) {
	if !c.enabled() {
		return
	}
	c.costMetrics.RecordUsage(model, messageType, costUSD)
}

// RecordBudgetDecision records the outcome of a budget check.
//
// Parameters:
//   - result: "allowed", "denied_daily", "denied_monthly" or "fail_open"
func (c *Collector) RecordBudgetDecision(result string) {
	if !c.enabled() {
		return
	}
	c.costMetrics.RecordDecision(result)
}

// RecordBudgetWarning records an emitted budget warning.
//
// Parameters:
//   - window: "daily" or "monthly"
//   - severity: "moderate" or "severe"
func (c *Collector) RecordBudgetWarning(window, severity string) {
	if !c.enabled() {
		return
	}
	c.costMetrics.RecordWarning(window, severity)
}

// RecordConsolidation records a background memory consolidation.
//
// Parameters:
//   - result: "success", "summarizer_error", "store_error" or "skipped"
//   - duration: Time spent including the summarizer call
func (c *Collector) RecordConsolidation(result string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.memoryMetrics.RecordConsolidation(result, duration)
}

// RecordStoreError records a persistence error that was swallowed by a
// fail-open read or a best-effort write.
//
// Parameters:
//   - op: Engine operation (e.g., "record_turn", "daily_spend")
func (c *Collector) RecordStoreError(op string) {
	if !c.enabled() {
		return
	}
	c.memoryMetrics.RecordStoreError(op)
}

// RecordPruned records rows deleted by the retention pruner.
//
// Parameters:
//   - kind: "turns" or "usage"
//   - count: Number of rows deleted
func (c *Collector) RecordPruned(kind string, count int64) {
	if !c.enabled() {
		return
	}
	c.memoryMetrics.RecordPruned(kind, count)
}

// RecordCacheHit records a cache hit.
//
// Parameters:
//   - cacheName: Name of the cache (e.g., "search")
func (c *Collector) RecordCacheHit(cacheName string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordHit(cacheName)
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheName string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordMiss(cacheName)
}

// UpdateCacheSize updates the current number of entries in a cache.
func (c *Collector) UpdateCacheSize(cacheName string, size int) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.UpdateSize(cacheName, size)
}

// RecordCacheEviction records an entry evicted by size or TTL.
func (c *Collector) RecordCacheEviction(cacheName string) {
	if !c.enabled() {
		return
	}
	c.cacheMetrics.RecordEviction(cacheName)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}
