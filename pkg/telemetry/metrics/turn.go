package metrics

import (
	"time"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TurnMetrics tracks conversation turns handled by the composer.
//
// Metrics:
//   - samantha_turn_total: Turns by outcome
//   - samantha_turn_duration_seconds: Turn duration histogram
//   - samantha_turn_search_total: Turns augmented with web search
//   - samantha_turn_paced_total: Messages rejected by per-user pacing
type TurnMetrics struct {
	turnsTotal   *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	searchTotal  *prometheus.CounterVec
	pacedTotal   *prometheus.CounterVec
}

// NewTurnMetrics creates and registers turn metrics with the provided registry.
func NewTurnMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *TurnMetrics {
	factory := promauto.With(registry)

	return &TurnMetrics{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "turn",
				Name:      "total",
				Help:      "Total number of conversation turns by outcome",
			},
			[]string{"outcome"},
		),

		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "turn",
				Name:      "duration_seconds",
				Help:      "Duration of conversation turns in seconds",
				// Dominated by the model call.
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60},
			},
			[]string{"outcome"},
		),

		searchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "turn",
				Name:      "search_total",
				Help:      "Turns augmented with web search by trigger reason",
			},
			[]string{"reason"},
		),

		pacedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "turn",
				Name:      "paced_total",
				Help:      "Messages rejected because the sender was inside the pacing interval",
			},
			[]string{"channel"},
		),
	}
}

// Record records one turn.
func (tm *TurnMetrics) Record(outcome string, duration time.Duration) {
	tm.turnsTotal.WithLabelValues(outcome).Inc()
	tm.turnDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordSearch records a search-augmented turn.
func (tm *TurnMetrics) RecordSearch(reason string) {
	tm.searchTotal.WithLabelValues(reason).Inc()
}

// RecordPaced records a message rejected by pacing.
func (tm *TurnMetrics) RecordPaced(channel string) {
	tm.pacedTotal.WithLabelValues(channel).Inc()
}
