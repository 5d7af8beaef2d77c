package metrics

import (
	"time"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProviderMetrics tracks calls to the model provider.
//
// Metrics:
//   - samantha_model_requests_total: Model calls by model and status
//   - samantha_model_latency_seconds: Model call latency
//   - samantha_model_tokens_total: Tokens reported by the provider, by direction
type ProviderMetrics struct {
	// Total calls by model and status
	requests *prometheus.CounterVec

	// Call latency histogram
	latency *prometheus.HistogramVec

	// Token counter (direction: input, output)
	tokens *prometheus.CounterVec
}

// NewProviderMetrics creates and registers provider metrics with the provided registry.
func NewProviderMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *ProviderMetrics {
	factory := promauto.With(registry)

	return &ProviderMetrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "model",
				Name:      "requests_total",
				Help:      "Total number of model calls by model and status",
			},
			[]string{"model", "status"},
		),

		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "model",
				Name:      "latency_seconds",
				Help:      "Model call latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"model"},
		),

		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "model",
				Name:      "tokens_total",
				Help:      "Total tokens reported by the provider",
			},
			[]string{"model", "direction"},
		),
	}
}

// Record records one model call.
//
// Parameters:
//   - model: Model name
//   - status: "success" or "error"
//   - latency: Call duration
//   - inputTokens, outputTokens: Provider-reported token counts
func (pm *ProviderMetrics) Record(model, status string, latency time.Duration, inputTokens, outputTokens int) {
	pm.requests.WithLabelValues(model, status).Inc()
	pm.latency.WithLabelValues(model).Observe(latency.Seconds())
	if inputTokens > 0 {
		pm.tokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		pm.tokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}
