// Package config provides configuration management for Samantha.
//
// This package handles loading, validating, and reloading configuration from
// YAML files with .env and environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("samantha.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("samantha.yaml")
//
// A missing file is not an error; the defaults are used.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention SAMANTHA_SECTION_FIELD
// and are bound through struct tags (caarlos0/env). For example:
//
//   - SAMANTHA_BUDGET_DAILY_LIMIT overrides budget.daily_limit
//   - SAMANTHA_STORAGE_BACKEND overrides storage.backend
//   - SAMANTHA_SEARCH_TRIGGERS overrides search.triggers (comma separated)
//
// Credentials keep their conventional names: OPENAI_API_KEY, OPENAI_BASE_URL
// and TELEGRAM_BOT_TOKEN. A .env file in the working directory is loaded
// first and never overrides variables that are already set.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. .env file
//  4. Environment variable overrides
//  5. Validation (fails fast if invalid)
//
// There is no global configuration instance. The command layer loads a
// Config and hands the relevant sections to each component.
//
// # Hot Reload
//
// Watcher watches the file and calls back with each new valid Config. Only
// the price table and the budget limits are applied live; other changes need
// a restart.
//
//	w, err := config.NewWatcher(path, 0)
//	go w.Watch(ctx, func(cfg *config.Config) error {
//		return calc.UpdatePricing(pricingFrom(cfg))
//	})
package config
