package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/Spandai/samantha-telegram-agent/pkg/cli"
	"github.com/Spandai/samantha-telegram-agent/pkg/composer"
	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
	"github.com/Spandai/samantha-telegram-agent/pkg/memory"
	"github.com/Spandai/samantha-telegram-agent/pkg/processing/costs"
	"github.com/Spandai/samantha-telegram-agent/pkg/processing/tokens"
	"github.com/Spandai/samantha-telegram-agent/pkg/providers"
	"github.com/Spandai/samantha-telegram-agent/pkg/providers/openai"
	"github.com/Spandai/samantha-telegram-agent/pkg/search"
	"github.com/Spandai/samantha-telegram-agent/pkg/security/auth"
	"github.com/Spandai/samantha-telegram-agent/pkg/storage"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/logging"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/tracing"
)

// app holds the components shared by the subcommands. tracer, model, search
// and composer are only set when the command talks to the model.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Collector
	store      storage.Store
	calculator *costs.Calculator
	budget     *budget.Engine
	memory     *memory.Engine

	apiKeys  *auth.APIKeyValidator
	tracer   *tracing.Tracer
	model    *providers.Monitored
	search   *search.Manager
	composer *composer.Composer
}

// loadConfig reads the config file named by --config with environment
// overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	return cfg, nil
}

// newApp opens the store and builds the memory and budget engines. With
// withModel it also builds the model client, web search and the composer.
func newApp(cfg *config.Config, withModel bool) (*app, error) {
	logger, err := logging.Setup(cfg.Telemetry.Logging, nil)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector(&cfg.Telemetry.Metrics, registry),
	}

	a.calculator, err = costs.NewCalculator(pricingFromConfig(cfg.Pricing))
	if err != nil {
		return nil, cli.NewConfigError("pricing", err.Error())
	}

	counter, err := tokens.NewCounter(cfg.Tokens.Encoding)
	if err != nil {
		logger.Warn("token encoding unavailable, counting with the word heuristic", "error", err)
	}

	a.store, err = storage.Open(storageConfig(cfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	a.budget, err = budget.NewEngine(a.store, counter, a.calculator, budget.LimitsFromConfig(cfg.Budget),
		budget.WithMetrics(a.metrics),
		budget.WithLogger(logger),
	)
	if err != nil {
		a.store.Close()
		return nil, cli.NewConfigError("budget", err.Error())
	}

	a.memory, err = memory.NewEngine(a.store, counter, memory.SettingsFromConfig(cfg.Agent, cfg.Memory),
		memory.WithMetrics(a.metrics),
		memory.WithLogger(logger),
	)
	if err != nil {
		a.store.Close()
		return nil, cli.NewConfigError("memory", err.Error())
	}

	if !withModel {
		return a, nil
	}

	if err := a.buildComposer(); err != nil {
		a.store.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildComposer() error {
	cfg := a.cfg

	client, err := openai.NewClient(cfg.OpenAI, openai.WithLogger(a.logger))
	if err != nil {
		return cli.NewConfigError("openai.api_key", err.Error())
	}

	a.tracer, err = tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	if a.tracer.Enabled() {
		a.logger.Info("tracing enabled",
			"endpoint", cfg.Telemetry.Tracing.Endpoint,
			"sampler", cfg.Telemetry.Tracing.Sampler,
		)
	}

	a.model = providers.Monitor(client,
		providers.WithMetrics(a.metrics),
		providers.WithTracer(a.tracer),
		providers.WithLogger(a.logger),
	)

	backend := search.NewDuckDuckGo(
		search.WithHTTPClient(&http.Client{Timeout: cfg.Search.Timeout}),
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithLogger(a.logger),
	)
	a.search = search.NewManager(backend, cfg.Search,
		search.WithMetrics(a.metrics),
		search.WithManagerLogger(a.logger),
	)

	a.composer, err = composer.New(a.memory, a.budget, a.model, composer.SettingsFromConfig(cfg),
		composer.WithSearch(a.search),
		composer.WithSummarizer(providers.NewSummarizer(a.model, cfg.Agent.SummaryModel)),
		composer.WithMetrics(a.metrics),
		composer.WithTracer(a.tracer),
		composer.WithLogger(a.logger),
	)
	if err != nil {
		return cli.NewConfigError("agent", err.Error())
	}
	return nil
}

// reload applies the hot-reloadable sections of a new configuration.
func (a *app) reload(cfg *config.Config) error {
	var errs []error
	if err := a.budget.UpdateLimits(budget.LimitsFromConfig(cfg.Budget)); err != nil {
		errs = append(errs, fmt.Errorf("budget: %w", err))
	}
	if err := a.calculator.UpdatePricing(pricingFromConfig(cfg.Pricing)); err != nil {
		errs = append(errs, fmt.Errorf("pricing: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	if a.apiKeys != nil {
		a.apiKeys.Replace(auth.KeysFromConfig(cfg.Server))
	}

	a.logger.Info("configuration reloaded",
		"daily_limit", cfg.Budget.DailyLimit,
		"monthly_limit", cfg.Budget.MonthlyLimit,
		"priced_models", len(cfg.Pricing.Models),
		"api_keys", len(cfg.Server.APIKeys),
	)
	return nil
}

// close waits for background consolidations, flushes traces and closes the
// store.
func (a *app) close() {
	if a.composer != nil {
		timeout := a.cfg.Memory.ConsolidationTimeout
		if timeout <= 0 {
			timeout = config.DefaultConsolidationTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.composer.Wait(ctx); err != nil {
			a.logger.Warn("abandoning running consolidations", "error", err)
		}
		cancel()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Telemetry.Tracing.Timeout)
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to flush traces", "error", err)
		}
		cancel()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}

func pricingFromConfig(cfg config.PricingConfig) costs.Pricing {
	pricing := make(costs.Pricing, len(cfg.Models))
	for model, p := range cfg.Models {
		pricing[model] = costs.ModelPricing{
			InputPer1K:  decimal.NewFromFloat(p.Input),
			OutputPer1K: decimal.NewFromFloat(p.Output),
		}
	}
	return pricing
}

func storageConfig(cfg config.StorageConfig) storage.Config {
	return storage.Config{
		Backend: cfg.Backend,
		SQLite: storage.SQLiteConfig{
			Path:               cfg.SQLite.Path,
			Driver:             cfg.SQLite.Driver,
			BusyTimeout:        cfg.SQLite.BusyTimeout,
			CheckpointInterval: cfg.SQLite.CheckpointInterval,
		},
		Postgres: storage.PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		},
	}
}

// commandContext bounds one-shot commands.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := cli.SignalContext(parent)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	return ctx, func() {
		cancel()
		stop()
	}
}
