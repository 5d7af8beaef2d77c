package metrics

import (
	"github.com/Spandai/samantha-telegram-agent/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CostMetrics tracks spend and budget enforcement.
//
// Metrics:
//   - samantha_budget_cost_usd_total: Total tracked cost by model and message type
//   - samantha_budget_cost_per_event_usd: Cost distribution per usage event
//   - samantha_budget_decisions_total: Budget checks by result
//   - samantha_budget_warnings_total: Warnings emitted by window and severity
type CostMetrics struct {
	// Total cost counter (in USD)
	costTotal *prometheus.CounterVec

	// Cost per usage event histogram (in USD)
	costPerEvent *prometheus.HistogramVec

	// Budget check results
	decisions *prometheus.CounterVec

	// Emitted warnings
	warnings *prometheus.CounterVec
}

// NewCostMetrics creates and registers cost metrics with the provided registry.
func NewCostMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *CostMetrics {
	factory := promauto.With(registry)

	return &CostMetrics{
		costTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "budget",
				Name:      "cost_usd_total",
				Help:      "Total tracked cost in USD by model and message type",
			},
			[]string{"model", "message_type"},
		),

		costPerEvent: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "budget",
				Name:      "cost_per_event_usd",
				Help:      "Cost distribution per usage event in USD",
				// gpt-4o-mini turns cost fractions of a cent.
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"message_type"},
		),

		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "budget",
				Name:      "decisions_total",
				Help:      "Total number of budget checks by result",
			},
			[]string{"result"},
		),

		warnings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "budget",
				Name:      "warnings_total",
				Help:      "Total number of budget warnings by window and severity",
			},
			[]string{"window", "severity"},
		),
	}
}

// RecordUsage records the cost of a usage event. Zero-cost events are
// ignored.
func (cm *CostMetrics) RecordUsage(model, messageType string, costUSD float64) {
	if costUSD <= 0 {
		return
	}

	cm.costTotal.WithLabelValues(model, messageType).Add(costUSD)
	cm.costPerEvent.WithLabelValues(messageType).Observe(costUSD)
}

// RecordDecision records a budget check result.
func (cm *CostMetrics) RecordDecision(result string) {
	cm.decisions.WithLabelValues(result).Inc()
}

// RecordWarning records an emitted warning.
func (cm *CostMetrics) RecordWarning(window, severity string) {
	cm.warnings.WithLabelValues(window, severity).Inc()
}
