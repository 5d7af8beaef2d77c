package config

import "time"

// Default values for configuration fields.
const (
	// Agent defaults
	DefaultAgentName    = "Samantha"
	DefaultModel        = "gpt-4o-mini"
	DefaultMaxTokens    = 800
	DefaultTemperature  = 0.7
	DefaultModelTimeout = 60 * time.Second
	DefaultMaxRetries   = 2

	// Telegram defaults
	DefaultPollTimeout      = 30
	DefaultRateInterval     = 2 * time.Second
	DefaultMaxMessageLength = 4096

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 90 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	MinAPIKeyLength        = 16

	// Storage defaults
	DefaultStorageBackend           = "sqlite"
	DefaultSQLitePath               = "data/samantha.db"
	DefaultSQLiteDriver             = "sqlite"
	DefaultSQLiteBusyTimeout        = 5 * time.Second
	DefaultSQLiteCheckpointInterval = 5 * time.Minute
	DefaultPostgresMaxOpenConns     = 10
	DefaultPostgresMaxIdleConns     = 5
	DefaultPostgresConnMaxLifetime  = 30 * time.Minute

	// Memory defaults
	DefaultShortTermWindow          = 50
	DefaultContextTurns             = 10
	DefaultSummaryTurns             = 20
	DefaultMinTurnsForConsolidation = 10
	DefaultConsolidationInterval    = 7 * 24 * time.Hour
	DefaultConsolidationTimeout     = 60 * time.Second

	// Budget defaults
	DefaultDailyLimit       = 1.50
	DefaultMonthlyLimit     = 40.00
	DefaultWarningThreshold = 0.75
	DefaultSevereThreshold  = 0.90
	DefaultEstimate         = 0.01

	// Tokens defaults
	DefaultEncoding = "cl100k_base"

	// Search defaults
	DefaultSearchCacheTTL   = time.Hour
	DefaultSearchCacheSize  = 256
	DefaultSearchMaxResults = 5
	DefaultSearchTimeout    = 10 * time.Second

	// Retention defaults
	DefaultRetentionDays = 30
	DefaultPruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "samantha"
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultTracingSampler   = "always"
	DefaultSampleRatio      = 0.1
	DefaultServiceName      = "samantha"
)

// DefaultSearchTriggers are the phrases that flag a message as search-worthy.
var DefaultSearchTriggers = []string{
	"recherche", "trouve", "cherche", "infos sur", "actualité",
	"récent", "nouveau", "dernier", "current", "latest", "news",
	"prix", "course", "météo", "horaire", "quoi de neuf",
}

// DefaultPricing returns the built-in price table, USD per 1000 tokens.
func DefaultPricing() map[string]ModelPricingConfig {
	return map[string]ModelPricingConfig{
		"default":                {Input: 0.00015, Output: 0.0006},
		"gpt-4o-mini":            {Input: 0.00015, Output: 0.0006},
		"text-embedding-3-small": {Input: 0.00002, Output: 0},
	}
}

// Defaults returns a configuration with every field set to its default.
// Files are decoded on top of it so that switches defaulting to true stay
// on when a file omits them.
func Defaults() *Config {
	cfg := &Config{
		Server:    ServerConfig{Enabled: true},
		Search:    SearchConfig{Enabled: true},
		Retention: RetentionConfig{PruneUsage: true, PruneSchedule: DefaultPruneSchedule},
		Telemetry: TelemetryConfig{Metrics: MetricsConfig{Enabled: true}},
		Pricing:   PricingConfig{Models: DefaultPricing()},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Agent defaults
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = DefaultAgentName
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = DefaultModel
	}
	if cfg.Agent.SummaryModel == "" {
		cfg.Agent.SummaryModel = cfg.Agent.Model
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = DefaultMaxTokens
	}
	if cfg.Agent.Temperature == 0 {
		cfg.Agent.Temperature = DefaultTemperature
	}
	if cfg.OpenAI.Timeout == 0 {
		cfg.OpenAI.Timeout = DefaultModelTimeout
	}
	if cfg.OpenAI.MaxRetries == 0 {
		cfg.OpenAI.MaxRetries = DefaultMaxRetries
	}

	// Telegram defaults
	if cfg.Telegram.PollTimeout == 0 {
		cfg.Telegram.PollTimeout = DefaultPollTimeout
	}
	if cfg.Telegram.RateInterval == 0 {
		cfg.Telegram.RateInterval = DefaultRateInterval
	}
	if cfg.Telegram.MaxMessageLength == 0 {
		cfg.Telegram.MaxMessageLength = DefaultMaxMessageLength
	}

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.Driver == "" {
		cfg.Storage.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.SQLite.CheckpointInterval == 0 {
		cfg.Storage.SQLite.CheckpointInterval = DefaultSQLiteCheckpointInterval
	}
	if cfg.Storage.Postgres.MaxOpenConns == 0 {
		cfg.Storage.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if cfg.Storage.Postgres.MaxIdleConns == 0 {
		cfg.Storage.Postgres.MaxIdleConns = DefaultPostgresMaxIdleConns
	}
	if cfg.Storage.Postgres.ConnMaxLifetime == 0 {
		cfg.Storage.Postgres.ConnMaxLifetime = DefaultPostgresConnMaxLifetime
	}

	// Memory defaults
	if cfg.Memory.ShortTermWindow == 0 {
		cfg.Memory.ShortTermWindow = DefaultShortTermWindow
	}
	if cfg.Memory.ContextTurns == 0 {
		cfg.Memory.ContextTurns = DefaultContextTurns
	}
	if cfg.Memory.SummaryTurns == 0 {
		cfg.Memory.SummaryTurns = DefaultSummaryTurns
	}
	if cfg.Memory.MinTurnsForConsolidation == 0 {
		cfg.Memory.MinTurnsForConsolidation = DefaultMinTurnsForConsolidation
	}
	if cfg.Memory.ConsolidationInterval == 0 {
		cfg.Memory.ConsolidationInterval = DefaultConsolidationInterval
	}
	if cfg.Memory.ConsolidationTimeout == 0 {
		cfg.Memory.ConsolidationTimeout = DefaultConsolidationTimeout
	}

	// Budget defaults
	if cfg.Budget.DailyLimit == 0 {
		cfg.Budget.DailyLimit = DefaultDailyLimit
	}
	if cfg.Budget.MonthlyLimit == 0 {
		cfg.Budget.MonthlyLimit = DefaultMonthlyLimit
	}
	if cfg.Budget.WarningThreshold == 0 {
		cfg.Budget.WarningThreshold = DefaultWarningThreshold
	}
	if cfg.Budget.SevereThreshold == 0 {
		cfg.Budget.SevereThreshold = DefaultSevereThreshold
	}
	if cfg.Budget.DefaultEstimate == 0 {
		cfg.Budget.DefaultEstimate = DefaultEstimate
	}

	// Pricing defaults
	if cfg.Pricing.Models == nil {
		cfg.Pricing.Models = DefaultPricing()
	}
	if _, ok := cfg.Pricing.Models["default"]; !ok {
		cfg.Pricing.Models["default"] = DefaultPricing()["default"]
	}

	// Tokens defaults
	if cfg.Tokens.Encoding == "" {
		cfg.Tokens.Encoding = DefaultEncoding
	}

	// Search defaults
	if len(cfg.Search.Triggers) == 0 {
		cfg.Search.Triggers = append([]string(nil), DefaultSearchTriggers...)
	}
	if cfg.Search.CacheTTL == 0 {
		cfg.Search.CacheTTL = DefaultSearchCacheTTL
	}
	if cfg.Search.CacheSize == 0 {
		cfg.Search.CacheSize = DefaultSearchCacheSize
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = DefaultSearchMaxResults
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = DefaultSearchTimeout
	}

	// Retention defaults
	if cfg.Retention.Days == 0 {
		cfg.Retention.Days = DefaultRetentionDays
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultServiceName
	}
}
