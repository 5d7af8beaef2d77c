package budget

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
)

// Limits contains the spending limits for both calendar windows.
type Limits struct {
	// Daily is the limit for the current UTC day (USD). Zero denies
	// every request.
	Daily decimal.Decimal

	// Monthly is the limit for the current UTC month (USD). Zero denies
	// every request.
	Monthly decimal.Decimal

	// WarningThreshold is the fraction (0.0-1.0] of a limit at which the
	// status becomes "warning" and a moderate warning is emitted.
	WarningThreshold float64

	// SevereThreshold is the fraction at which the warning becomes severe.
	SevereThreshold float64
}

// LimitsFromConfig converts the configuration into Limits.
func LimitsFromConfig(cfg config.BudgetConfig) Limits {
	return Limits{
		Daily:            decimal.NewFromFloat(cfg.DailyLimit),
		Monthly:          decimal.NewFromFloat(cfg.MonthlyLimit),
		WarningThreshold: cfg.WarningThreshold,
		SevereThreshold:  cfg.SevereThreshold,
	}
}

// Validate checks that limits are usable.
func (l Limits) Validate() error {
	var errs []error
	if l.Daily.IsNegative() {
		errs = append(errs, errors.New("daily limit must not be negative"))
	}
	if l.Monthly.IsNegative() {
		errs = append(errs, errors.New("monthly limit must not be negative"))
	}
	if l.WarningThreshold <= 0 || l.WarningThreshold > 1 {
		errs = append(errs, errors.New("warning threshold must be in (0, 1]"))
	}
	if l.SevereThreshold < l.WarningThreshold || l.SevereThreshold > 1 {
		errs = append(errs, errors.New("severe threshold must be in [warning threshold, 1]"))
	}
	return errors.Join(errs...)
}

// State is the derived budget state of a user.
type State string

const (
	// StateOK means both windows are below the warning threshold.
	StateOK State = "ok"

	// StateWarning means a window reached the warning threshold.
	StateWarning State = "warning"

	// StateExceeded means a window reached 100% of its limit.
	StateExceeded State = "exceeded"
)

// Window describes spend within one calendar period.
type Window struct {
	// Spent is the exact ledger sum for the period.
	Spent decimal.Decimal

	// Limit is the configured limit.
	Limit decimal.Decimal

	// Remaining is max(0, Limit - Spent).
	Remaining decimal.Decimal

	// Percentage is 100 * Spent / Limit, clamped to 100. Zero when the
	// limit is zero.
	Percentage float64

	// ResetAt is when the period ends.
	ResetAt time.Time

	ratio decimal.Decimal
}

// Status is the budget status of a user. It is recomputed from the ledger
// on every call and never persisted.
type Status struct {
	State   State
	Daily   Window
	Monthly Window

	// CheckedAt is the clock reading the status was computed at.
	CheckedAt time.Time
}

// Decision is the outcome of a budget check. A denial is not an error.
type Decision struct {
	Allowed bool

	// Reason is a user-facing explanation when Allowed is false.
	Reason string
}

// Estimate is the priced token count of a request/response pair.
type Estimate struct {
	InputTokens  int
	OutputTokens int
	Cost         decimal.Decimal

	// Model is the requested model; PricedAs is the price entry used.
	Model    string
	PricedAs string
}

// UsageStats summarizes the ledger over the last DaysAnalyzed days.
type UsageStats struct {
	TotalCost         decimal.Decimal
	TotalMessages     int
	AvgCostPerMessage decimal.Decimal
	TotalTokens       int
	DaysAnalyzed      int

	// ByMessageType counts events per message type ("chat", "summary").
	ByMessageType map[string]int
}
