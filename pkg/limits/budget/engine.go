package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spandai/samantha-telegram-agent/pkg/processing/costs"
	"github.com/Spandai/samantha-telegram-agent/pkg/processing/tokens"
	"github.com/Spandai/samantha-telegram-agent/pkg/storage"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
)

// Engine accounts for model spend and enforces the daily and monthly limits.
//
// The Engine holds no per-user state. Every read recomputes aggregates from
// the ledger, so concurrent calls for the same user need no coordination.
//
// # Failure Policy
//
// Reads fail open: a ledger error yields zero spend and CanProceed allows
// the request. Writes are best-effort: TrackUsage returns a zero-cost event
// alongside the error. Errors are still returned so callers can log them.
type Engine struct {
	store      storage.LedgerStore
	counter    tokens.Counter
	calculator *costs.Calculator
	metrics    *metrics.Collector
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.RWMutex
	limits Limits
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records budget decisions, warnings and usage on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = collector }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With("component", "budget.engine") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a budget engine over the ledger store.
//
// Example:
//
//	engine, err := budget.NewEngine(store, counter, calculator, budget.Limits{
//	    Daily:            decimal.RequireFromString("1.50"),
//	    Monthly:          decimal.RequireFromString("40.00"),
//	    WarningThreshold: 0.75,
//	    SevereThreshold:  0.90,
//	})
func NewEngine(store storage.LedgerStore, counter tokens.Counter, calculator *costs.Calculator, limits Limits, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("budget: ledger store is required")
	}
	if calculator == nil {
		return nil, errors.New("budget: cost calculator is required")
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("budget: invalid limits: %w", err)
	}
	if counter == nil {
		counter = tokens.HeuristicCounter{}
	}

	e := &Engine{
		store:      store,
		counter:    counter,
		calculator: calculator,
		logger:     slog.Default().With("component", "budget.engine"),
		now:        time.Now,
		limits:     limits,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Limits returns the current limits.
func (e *Engine) Limits() Limits {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limits
}

// UpdateLimits replaces the limits, e.g. on config reload. Invalid limits
// are rejected and the previous ones stay in effect.
func (e *Engine) UpdateLimits(limits Limits) error {
	if err := limits.Validate(); err != nil {
		return fmt.Errorf("budget: invalid limits: %w", err)
	}

	e.mu.Lock()
	e.limits = limits
	e.mu.Unlock()

	e.logger.Info("budget limits updated",
		"daily", limits.Daily.String(),
		"monthly", limits.Monthly.String(),
		"warning_threshold", limits.WarningThreshold,
	)
	return nil
}

// EstimateCost tokenizes both texts with the shared counter and prices them.
// Unknown models are priced with the default entry.
func (e *Engine) EstimateCost(inputText, outputText, model string) Estimate {
	in := e.counter.Count(inputText)
	out := e.counter.Count(outputText)
	cost := e.calculator.Calculate(in, out, model)

	return Estimate{
		InputTokens:  in,
		OutputTokens: out,
		Cost:         cost.Total,
		Model:        model,
		PricedAs:     cost.PricedAs,
	}
}

// TrackUsage prices a completed call and appends it to the ledger.
//
// On persistence failure the returned event has zero tokens and zero cost,
// and the error is returned for logging. The reply the event accounts for
// has already been produced, so callers must not fail on this error.
func (e *Engine) TrackUsage(ctx context.Context, userID, inputText, outputText, messageType, model string) (*storage.UsageEvent, error) {
	est := e.EstimateCost(inputText, outputText, model)

	event := &storage.UsageEvent{
		UserID:       userID,
		InputTokens:  est.InputTokens,
		OutputTokens: est.OutputTokens,
		CostUSD:      est.Cost,
		MessageType:  messageType,
		Model:        model,
		CreatedAt:    e.now().UTC(),
	}

	if err := e.store.AppendUsage(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "failed to track usage",
			"user_id", userID,
			"message_type", messageType,
			"error", err,
		)
		e.metrics.RecordStoreError("track_usage")

		return &storage.UsageEvent{
			UserID:      userID,
			CostUSD:     decimal.Zero,
			MessageType: messageType,
			Model:       model,
			CreatedAt:   event.CreatedAt,
		}, fmt.Errorf("failed to track usage: %w", err)
	}

	e.metrics.RecordUsage(model, messageType, est.Cost.InexactFloat64())
	e.logger.DebugContext(ctx, "tracked usage",
		"user_id", userID,
		"cost_usd", est.Cost.String(),
		"input_tokens", est.InputTokens,
		"output_tokens", est.OutputTokens,
	)
	return event, nil
}

// DailySpend returns the user's spend for the current UTC day, or zero if
// the ledger cannot be read.
func (e *Engine) DailySpend(ctx context.Context, userID string) decimal.Decimal {
	spent, _ := e.spend(ctx, userID, Day(e.now()), "daily_spend")
	return spent
}

// MonthlySpend returns the user's spend for the current UTC month, or zero
// if the ledger cannot be read.
func (e *Engine) MonthlySpend(ctx context.Context, userID string) decimal.Decimal {
	spent, _ := e.spend(ctx, userID, Month(e.now()), "monthly_spend")
	return spent
}

func (e *Engine) spend(ctx context.Context, userID string, p Period, op string) (decimal.Decimal, error) {
	spent, err := e.store.SumCost(ctx, userID, p.Start, p.End)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to read spend, assuming zero",
			"op", op,
			"user_id", userID,
			"error", err,
		)
		e.metrics.RecordStoreError(op)
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return spent, nil
}

// Status computes the user's budget status. Spend that cannot be read
// counts as zero; the returned status is always usable and the error only
// reports that it may be understated.
func (e *Engine) Status(ctx context.Context, userID string) (*Status, error) {
	now := e.now().UTC()
	limits := e.Limits()

	day, month := Day(now), Month(now)
	dailySpent, dailyErr := e.spend(ctx, userID, day, "daily_spend")
	monthlySpent, monthlyErr := e.spend(ctx, userID, month, "monthly_spend")

	status := &Status{
		Daily:     newWindow(dailySpent, limits.Daily, day.ResetAt()),
		Monthly:   newWindow(monthlySpent, limits.Monthly, month.ResetAt()),
		CheckedAt: now,
	}

	warning := decimal.NewFromFloat(limits.WarningThreshold)
	switch {
	case status.Daily.reached(decimal.NewFromInt(1)) || status.Monthly.reached(decimal.NewFromInt(1)):
		status.State = StateExceeded
	case status.Daily.reached(warning) || status.Monthly.reached(warning):
		status.State = StateWarning
	default:
		status.State = StateOK
	}

	return status, errors.Join(dailyErr, monthlyErr)
}

// CanProceed reports whether a request of the estimated cost fits in both
// windows. The request is denied when spent + estimated reaches the limit,
// so a user at 1.49 of 1.50 cannot start a 0.01 request. The daily window
// is checked first.
//
// Any internal error allows the request and is returned for logging.
func (e *Engine) CanProceed(ctx context.Context, userID string, estimated decimal.Decimal) (Decision, error) {
	status, err := e.Status(ctx, userID)
	if err != nil {
		e.metrics.RecordBudgetDecision("fail_open")
		return Decision{Allowed: true}, err
	}

	if status.Daily.wouldExceed(estimated) {
		e.metrics.RecordBudgetDecision("denied_daily")
		return Decision{
			Reason: fmt.Sprintf("⛔ Budget quotidien atteint ($%s/$%s). Reset à minuit.",
				money(status.Daily.Spent), money(status.Daily.Limit)),
		}, nil
	}

	if status.Monthly.wouldExceed(estimated) {
		e.metrics.RecordBudgetDecision("denied_monthly")
		return Decision{
			Reason: fmt.Sprintf("⛔ Budget mensuel atteint ($%s/$%s). Reset le 1er du mois.",
				money(status.Monthly.Spent), money(status.Monthly.Limit)),
		}, nil
	}

	e.metrics.RecordBudgetDecision("allowed")
	return Decision{Allowed: true}, nil
}

// WarningMessage returns a warning when a window crossed the severe or the
// warning threshold. The daily window takes precedence. No warning is
// returned when spend cannot be read.
func (e *Engine) WarningMessage(ctx context.Context, userID string) (string, bool) {
	status, err := e.Status(ctx, userID)
	if err != nil {
		return "", false
	}

	limits := e.Limits()
	severe := decimal.NewFromFloat(limits.SevereThreshold)
	warning := decimal.NewFromFloat(limits.WarningThreshold)

	windows := []struct {
		name  string
		label string
		w     Window
	}{
		{"daily", "quotidien", status.Daily},
		{"monthly", "mensuel", status.Monthly},
	}

	for _, win := range windows {
		switch {
		case win.w.reached(severe):
			e.metrics.RecordBudgetWarning(win.name, "severe")
			return fmt.Sprintf("🔴 Budget %s presque épuisé: $%s/$%s (%.0f%%)",
				win.label, money(win.w.Spent), money(win.w.Limit), win.w.Percentage), true
		case win.w.reached(warning):
			e.metrics.RecordBudgetWarning(win.name, "moderate")
			return fmt.Sprintf("⚠️ Budget %s à %.0f%%: $%s/$%s",
				win.label, win.w.Percentage, money(win.w.Spent), money(win.w.Limit)), true
		}
	}

	return "", false
}

// UsageStats summarizes the user's ledger over the last days. On read
// failure the stats are zero and the error is returned.
func (e *Engine) UsageStats(ctx context.Context, userID string, days int) (UsageStats, error) {
	if days <= 0 {
		days = 7
	}

	stats := UsageStats{
		TotalCost:         decimal.Zero,
		AvgCostPerMessage: decimal.Zero,
		DaysAnalyzed:      days,
		ByMessageType:     make(map[string]int),
	}

	p := Trailing(e.now(), days)
	events, err := e.store.ListUsage(ctx, userID, p.Start, p.End)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to read usage stats", "user_id", userID, "error", err)
		e.metrics.RecordStoreError("usage_stats")
		return stats, fmt.Errorf("failed to read usage stats: %w", err)
	}

	for _, ev := range events {
		stats.TotalCost = stats.TotalCost.Add(ev.CostUSD)
		stats.TotalTokens += ev.InputTokens + ev.OutputTokens
		stats.ByMessageType[ev.MessageType]++
	}
	stats.TotalMessages = len(events)
	if stats.TotalMessages > 0 {
		stats.AvgCostPerMessage = stats.TotalCost.Div(decimal.NewFromInt(int64(stats.TotalMessages)))
	}

	return stats, nil
}

func newWindow(spent, limit decimal.Decimal, resetAt time.Time) Window {
	w := Window{
		Spent:     spent,
		Limit:     limit,
		Remaining: decimal.Max(decimal.Zero, limit.Sub(spent)),
		ResetAt:   resetAt,
		ratio:     decimal.Zero,
	}
	if limit.IsPositive() {
		w.ratio = spent.Div(limit)
		w.Percentage = min(w.ratio.Mul(decimal.NewFromInt(100)).InexactFloat64(), 100)
	}
	return w
}

// reached reports whether spend reached fraction of the limit. A zero limit
// has no meaningful fraction and is never reached.
func (w Window) reached(fraction decimal.Decimal) bool {
	return w.Limit.IsPositive() && w.ratio.GreaterThanOrEqual(fraction)
}

// wouldExceed reports whether spending estimated more reaches the limit. A
// zero limit is always reached.
func (w Window) wouldExceed(estimated decimal.Decimal) bool {
	return w.Spent.Add(estimated).GreaterThanOrEqual(w.Limit)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
