package providers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/tracing"
)

// unhealthyAfter is the number of consecutive failed calls after which a
// model without its own Ping reports unhealthy.
const unhealthyAfter = 3

// Health tracks the health status of a model.
type Health struct {
	// Healthy indicates whether the model is currently usable
	Healthy bool

	// LastCheck is the time of the last call or ping
	LastCheck time.Time

	// LastError is the most recent error encountered (nil if healthy)
	LastError error

	// ConsecutiveFailures counts sequential failed calls and pings
	ConsecutiveFailures int

	// LastSuccess is the time of the last successful call
	LastSuccess time.Time

	// TotalRequests is the total number of completion calls
	TotalRequests int64

	// FailedRequests is the number of failed completion calls
	FailedRequests int64
}

// Monitored wraps a ChatModel with request validation, metrics and health
// tracking. It implements ChatModel and Pinger and is safe for concurrent use.
type Monitored struct {
	model   ChatModel
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	logger  *slog.Logger

	mu     sync.RWMutex
	health Health
}

// MonitorOption configures a Monitored model.
type MonitorOption func(*Monitored)

// WithMetrics records every call on collector.
func WithMetrics(collector *metrics.Collector) MonitorOption {
	return func(m *Monitored) { m.metrics = collector }
}

// WithTracer records a client span per completion call.
func WithTracer(t *tracing.Tracer) MonitorOption {
	return func(m *Monitored) { m.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitored) { m.logger = logger.With("component", "providers.monitor") }
}

// Monitor wraps model. The model starts out healthy.
func Monitor(model ChatModel, opts ...MonitorOption) *Monitored {
	m := &Monitored{
		model:  model,
		logger: slog.Default().With("component", "providers.monitor"),
		health: Health{Healthy: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the wrapped model's name.
func (m *Monitored) Name() string {
	return m.model.Name()
}

// Complete validates req, forwards it and records the outcome.
func (m *Monitored) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := m.tracer.Start(ctx, "model.complete", trace.WithSpanKind(trace.SpanKindClient))
	tracing.SetModelAttributes(span, m.model.Name(), req.Model)

	start := time.Now()
	resp, err := m.model.Complete(ctx, req)
	latency := time.Since(start)

	var in, out int
	if resp != nil {
		in, out = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	}
	m.metrics.RecordModelCall(req.Model, Status(err), latency, in, out)
	tracing.SetTokenAttributes(span, in, out)
	tracing.End(span, err)

	// A caller giving up says nothing about the model.
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	m.record(err, true)

	if err != nil {
		m.logger.WarnContext(ctx, "model call failed",
			"provider", m.model.Name(),
			"model", req.Model,
			"latency", latency,
			"error", err,
		)
		return nil, err
	}

	m.logger.DebugContext(ctx, "model call completed",
		"provider", m.model.Name(),
		"model", resp.Model,
		"latency", latency,
		"prompt_tokens", in,
		"completion_tokens", out,
	)
	return resp, nil
}

// Ping checks the model. Models implementing Pinger are asked directly;
// for others the result of recent calls decides.
func (m *Monitored) Ping(ctx context.Context) error {
	if p, ok := m.model.(Pinger); ok {
		err := p.Ping(ctx)
		m.record(err, false)
		return err
	}

	h := m.Health()
	if !h.Healthy {
		if h.LastError != nil {
			return h.LastError
		}
		return errors.New("model unhealthy")
	}
	return nil
}

// Health returns a snapshot of the health status.
func (m *Monitored) Health() Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health
}

func (m *Monitored) record(err error, request bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.health.LastCheck = now
	if request {
		m.health.TotalRequests++
	}

	if err == nil {
		if !m.health.Healthy {
			m.logger.Info("provider marked healthy",
				"provider", m.model.Name(),
				"previous_failures", m.health.ConsecutiveFailures,
			)
		}
		m.health.Healthy = true
		m.health.ConsecutiveFailures = 0
		m.health.LastError = nil
		m.health.LastSuccess = now
		return
	}

	if request {
		m.health.FailedRequests++
	}
	m.health.ConsecutiveFailures++
	m.health.LastError = err
	if m.health.Healthy && m.health.ConsecutiveFailures >= unhealthyAfter {
		m.health.Healthy = false
		m.logger.Error("provider marked unhealthy",
			"provider", m.model.Name(),
			"consecutive_failures", m.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

// Backoff returns the wait before retry attempt n (1-based): base doubled
// per attempt, capped at 10x base and at 30 seconds.
func Backoff(attempt int, base time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}

	multiplier := 1 << uint(min(attempt, 8))
	if multiplier > 10 {
		multiplier = 10
	}

	backoff := base * time.Duration(multiplier)
	if maxBackoff := 30 * time.Second; backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
