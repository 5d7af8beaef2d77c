package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "budget.daily_limit").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
//
// Credentials are not checked here; commands that need them check at startup.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateAgent(&cfg.Agent)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateMemory(&cfg.Memory)...)
	errs = append(errs, validateBudget(&cfg.Budget)...)
	errs = append(errs, validatePricing(&cfg.Pricing)...)
	errs = append(errs, validateSearch(&cfg.Search)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if cfg.Telegram.RateInterval < 0 {
		errs = append(errs, FieldError{Field: "telegram.rate_interval", Message: "must not be negative"})
	}
	if cfg.Telegram.MaxMessageLength < 1 {
		errs = append(errs, FieldError{Field: "telegram.max_message_length", Message: "must be positive"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateAgent(cfg *AgentConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxTokens < 1 {
		errs = append(errs, FieldError{Field: "agent.max_tokens", Message: "must be positive"})
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		errs = append(errs, FieldError{Field: "agent.temperature", Message: "must be between 0 and 2"})
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 || cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server", Message: "timeouts must not be negative"})
	}
	if cfg.APIKey != "" && len(cfg.APIKey) < MinAPIKeyLength {
		errs = append(errs, FieldError{
			Field:   "server.api_key",
			Message: fmt.Sprintf("must be at least %d characters", MinAPIKeyLength),
		})
	}

	seen := make(map[string]bool, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		field := fmt.Sprintf("server.api_keys[%d]", i)
		if k.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "is required"})
		}
		if len(k.Key) < MinAPIKeyLength {
			errs = append(errs, FieldError{
				Field:   field + ".key",
				Message: fmt.Sprintf("must be at least %d characters", MinAPIKeyLength),
			})
		}
		if seen[k.Key] {
			errs = append(errs, FieldError{Field: field + ".key", Message: "duplicates another key"})
		}
		seen[k.Key] = true
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "storage.sqlite.path", Message: "is required for the sqlite backend"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "storage.sqlite.driver",
				Message: fmt.Sprintf("must be \"sqlite\" or \"sqlite3\", got %q", cfg.SQLite.Driver),
			})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "storage.postgres.dsn", Message: "is required for the postgres backend"})
		}
		if cfg.Postgres.MaxIdleConns > cfg.Postgres.MaxOpenConns {
			errs = append(errs, FieldError{Field: "storage.postgres.max_idle_conns", Message: "must not exceed max_open_conns"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("must be one of sqlite, postgres, memory; got %q", cfg.Backend),
		})
	}

	return errs
}

func validateMemory(cfg *MemoryConfig) []FieldError {
	var errs []FieldError

	if cfg.ContextTurns < 1 {
		errs = append(errs, FieldError{Field: "memory.context_turns", Message: "must be positive"})
	}
	if cfg.ShortTermWindow < cfg.ContextTurns {
		errs = append(errs, FieldError{Field: "memory.short_term_window", Message: "must be at least context_turns"})
	}
	if cfg.SummaryTurns < 1 {
		errs = append(errs, FieldError{Field: "memory.summary_turns", Message: "must be positive"})
	}
	if cfg.MinTurnsForConsolidation < 1 {
		errs = append(errs, FieldError{Field: "memory.min_turns_for_consolidation", Message: "must be positive"})
	}
	if cfg.ConsolidationInterval <= 0 {
		errs = append(errs, FieldError{Field: "memory.consolidation_interval", Message: "must be positive"})
	}

	return errs
}

func validateBudget(cfg *BudgetConfig) []FieldError {
	var errs []FieldError

	if cfg.DailyLimit < 0 {
		errs = append(errs, FieldError{Field: "budget.daily_limit", Message: "must not be negative"})
	}
	if cfg.MonthlyLimit < 0 {
		errs = append(errs, FieldError{Field: "budget.monthly_limit", Message: "must not be negative"})
	}
	if cfg.WarningThreshold <= 0 || cfg.WarningThreshold > 1 {
		errs = append(errs, FieldError{Field: "budget.warning_threshold", Message: "must be in (0, 1]"})
	}
	if cfg.SevereThreshold < cfg.WarningThreshold || cfg.SevereThreshold > 1 {
		errs = append(errs, FieldError{Field: "budget.severe_threshold", Message: "must be in [warning_threshold, 1]"})
	}
	if cfg.DefaultEstimate < 0 {
		errs = append(errs, FieldError{Field: "budget.default_estimate", Message: "must not be negative"})
	}

	return errs
}

func validatePricing(cfg *PricingConfig) []FieldError {
	var errs []FieldError

	if _, ok := cfg.Models["default"]; !ok {
		errs = append(errs, FieldError{Field: "pricing.models", Message: "must contain a \"default\" entry"})
	}
	for model, p := range cfg.Models {
		if p.Input < 0 || p.Output < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("pricing.models.%s", model),
				Message: "prices must not be negative",
			})
		}
	}

	return errs
}

func validateSearch(cfg *SearchConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}
	if cfg.CacheSize < 1 {
		errs = append(errs, FieldError{Field: "search.cache_size", Message: "must be positive"})
	}
	if cfg.MaxResults < 1 {
		errs = append(errs, FieldError{Field: "search.max_results", Message: "must be positive"})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.Days < 1 {
		errs = append(errs, FieldError{Field: "retention.days", Message: "must be positive"})
	}
	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text; got %q", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "is required when tracing is enabled",
		})
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("must be one of always, never, ratio; got %q", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "must be between 0.0 and 1.0",
		})
	}

	return errs
}
