package memory

import (
	"errors"
	"time"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
)

// Settings controls the size of each memory tier and the consolidation cadence.
type Settings struct {
	// AgentName labels assistant turns in rendered transcripts.
	AgentName string

	// ShortTermWindow is the number of newest turns forming short-term memory.
	ShortTermWindow int

	// ContextTurns is the number of newest turns rendered by Context.
	ContextTurns int

	// SummaryTurns is the number of newest turns handed to a summarizer.
	SummaryTurns int

	// MinTurnsForConsolidation is the number of stored turns required before
	// a summary is worth generating.
	MinTurnsForConsolidation int

	// ConsolidationInterval is the summary age at which it is refreshed.
	ConsolidationInterval time.Duration
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		AgentName:                "Samantha",
		ShortTermWindow:          50,
		ContextTurns:             10,
		SummaryTurns:             20,
		MinTurnsForConsolidation: 10,
		ConsolidationInterval:    7 * 24 * time.Hour,
	}
}

// SettingsFromConfig builds settings from the agent and memory config
// sections. Zero values fall back to DefaultSettings.
func SettingsFromConfig(agent config.AgentConfig, cfg config.MemoryConfig) Settings {
	s := DefaultSettings()
	if agent.Name != "" {
		s.AgentName = agent.Name
	}
	if cfg.ShortTermWindow > 0 {
		s.ShortTermWindow = cfg.ShortTermWindow
	}
	if cfg.ContextTurns > 0 {
		s.ContextTurns = cfg.ContextTurns
	}
	if cfg.SummaryTurns > 0 {
		s.SummaryTurns = cfg.SummaryTurns
	}
	if cfg.MinTurnsForConsolidation > 0 {
		s.MinTurnsForConsolidation = cfg.MinTurnsForConsolidation
	}
	if cfg.ConsolidationInterval > 0 {
		s.ConsolidationInterval = cfg.ConsolidationInterval
	}
	return s
}

// Validate checks that every window is positive and that the rendered and
// summarized windows fit in short-term memory.
func (s Settings) Validate() error {
	var errs []error
	if s.ShortTermWindow <= 0 {
		errs = append(errs, errors.New("short-term window must be positive"))
	}
	if s.ContextTurns <= 0 || s.ContextTurns > s.ShortTermWindow {
		errs = append(errs, errors.New("context turns must be in (0, short-term window]"))
	}
	if s.SummaryTurns <= 0 || s.SummaryTurns > s.ShortTermWindow {
		errs = append(errs, errors.New("summary turns must be in (0, short-term window]"))
	}
	if s.MinTurnsForConsolidation < 0 {
		errs = append(errs, errors.New("min turns for consolidation must not be negative"))
	}
	if s.ConsolidationInterval <= 0 {
		errs = append(errs, errors.New("consolidation interval must be positive"))
	}
	return errors.Join(errs...)
}
