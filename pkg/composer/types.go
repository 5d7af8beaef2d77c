package composer

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/providers"
	"github.com/Spandai/samantha-telegram-agent/pkg/storage"
)

// Message types recorded in the usage ledger.
const (
	MessageTypeChat    = "chat"
	MessageTypeSummary = "summary"
)

// Searcher is the web search collaborator. *search.Manager implements it.
type Searcher interface {
	Enabled() bool
	ShouldSearch(message string) bool
	Search(ctx context.Context, query string) (string, error)
}

// Summarizer condenses a transcript. *providers.Summarizer implements it.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (*providers.Summary, error)
}

// TurnRequest is one inbound user message.
type TurnRequest struct {
	UserID  string
	Message string

	// ForceSearch runs a web search even when the message has no trigger
	// phrase.
	ForceSearch bool
}

// Reply is the outcome of a turn.
type Reply struct {
	// Text is the message to deliver, including any budget warning.
	Text string

	// Denied is set when the budget refused the turn. Text then holds the
	// reason and no model call was made.
	Denied bool

	// Searched reports whether search results were added to the prompt.
	Searched bool

	// Warning is the budget warning appended to Text, if any.
	Warning string

	// Usage is the ledger entry for the model call. It is nil for denied
	// turns.
	Usage *storage.UsageEvent

	Model    string
	Duration time.Duration
}

// Settings are the model parameters and limits used per turn.
type Settings struct {
	Model       string
	MaxTokens   int
	Temperature float64

	// SummaryModel is the model name recorded for consolidation usage.
	SummaryModel string

	// DefaultEstimate is the cost assumed by the budget check before the
	// model is called.
	DefaultEstimate decimal.Decimal

	// ConsolidationTimeout bounds one background consolidation.
	ConsolidationTimeout time.Duration
}

// SettingsFromConfig derives composer settings from the loaded config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Model:                cfg.Agent.Model,
		MaxTokens:            cfg.Agent.MaxTokens,
		Temperature:          cfg.Agent.Temperature,
		SummaryModel:         cfg.Agent.SummaryModel,
		DefaultEstimate:      decimal.NewFromFloat(cfg.Budget.DefaultEstimate),
		ConsolidationTimeout: cfg.Memory.ConsolidationTimeout,
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	var errs []error
	if s.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if s.MaxTokens < 0 {
		errs = append(errs, errors.New("max tokens must not be negative"))
	}
	if s.DefaultEstimate.IsNegative() {
		errs = append(errs, errors.New("default estimate must not be negative"))
	}
	return errors.Join(errs...)
}
