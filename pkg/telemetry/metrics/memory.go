package metrics

import (
	"time"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MemoryMetrics tracks memory consolidation and persistence health.
//
// Metrics:
//   - samantha_memory_consolidations_total: Consolidations by result
//   - samantha_memory_consolidation_duration_seconds: Consolidation duration
//   - samantha_store_errors_total: Swallowed persistence errors by operation
//   - samantha_retention_pruned_total: Rows deleted by the pruner
type MemoryMetrics struct {
	consolidations        *prometheus.CounterVec
	consolidationDuration prometheus.Histogram
	storeErrors           *prometheus.CounterVec
	pruned                *prometheus.CounterVec
}

// NewMemoryMetrics creates and registers memory metrics with the provided registry.
func NewMemoryMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *MemoryMetrics {
	factory := promauto.With(registry)

	return &MemoryMetrics{
		consolidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "memory",
				Name:      "consolidations_total",
				Help:      "Total number of memory consolidations by result",
			},
			[]string{"result"},
		),

		consolidationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "memory",
				Name:      "consolidation_duration_seconds",
				Help:      "Duration of memory consolidations in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "store",
				Name:      "errors_total",
				Help:      "Persistence errors absorbed by fail-open or best-effort operations",
			},
			[]string{"op"},
		),

		pruned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "retention",
				Name:      "pruned_total",
				Help:      "Total number of rows deleted by retention pruning",
			},
			[]string{"kind"},
		),
	}
}

// RecordConsolidation records one consolidation attempt.
func (mm *MemoryMetrics) RecordConsolidation(result string, duration time.Duration) {
	mm.consolidations.WithLabelValues(result).Inc()
	mm.consolidationDuration.Observe(duration.Seconds())
}

// RecordStoreError records a swallowed persistence error.
func (mm *MemoryMetrics) RecordStoreError(op string) {
	mm.storeErrors.WithLabelValues(op).Inc()
}

// RecordPruned adds pruned rows.
func (mm *MemoryMetrics) RecordPruned(kind string, count int64) {
	if count <= 0 {
		return
	}
	mm.pruned.WithLabelValues(kind).Add(float64(count))
}
