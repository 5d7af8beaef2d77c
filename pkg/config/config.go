package config

import "time"

// Config is the root configuration structure for Samantha.
// It contains all configuration sections for the agent, its collaborators
// (model provider, search, Telegram), storage, the memory and budget engines,
// and telemetry.
type Config struct {
	// Agent contains the persona and model call settings.
	Agent AgentConfig `yaml:"agent"`

	// OpenAI contains the model provider connection settings.
	OpenAI OpenAIConfig `yaml:"openai"`

	// Telegram contains the bot transport settings.
	Telegram TelegramConfig `yaml:"telegram"`

	// Server contains the HTTP API server settings.
	Server ServerConfig `yaml:"server"`

	// Storage selects and configures the persistent store backend.
	Storage StorageConfig `yaml:"storage"`

	// Memory contains the memory tiering and consolidation settings.
	Memory MemoryConfig `yaml:"memory"`

	// Budget contains the spending limits.
	Budget BudgetConfig `yaml:"budget"`

	// Pricing is the per-model price table. Hot-reloadable.
	Pricing PricingConfig `yaml:"pricing"`

	// Tokens contains token counting settings.
	Tokens TokensConfig `yaml:"tokens"`

	// Search contains web search settings.
	Search SearchConfig `yaml:"search"`

	// Retention controls pruning of old turns and usage events.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry contains logging, metrics and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AgentConfig contains the persona and model call settings.
type AgentConfig struct {
	// Name is the assistant name used in prompts and transcripts.
	// Default: "Samantha"
	Name string `yaml:"name" env:"SAMANTHA_AGENT_NAME"`

	// Model is the chat model.
	// Default: "gpt-4o-mini"
	Model string `yaml:"model" env:"SAMANTHA_AGENT_MODEL"`

	// SummaryModel is the model used for memory consolidation.
	// Default: "gpt-4o-mini"
	SummaryModel string `yaml:"summary_model" env:"SAMANTHA_AGENT_SUMMARY_MODEL"`

	// MaxTokens caps the reply length.
	// Default: 800
	MaxTokens int `yaml:"max_tokens" env:"SAMANTHA_AGENT_MAX_TOKENS"`

	// Temperature is the sampling temperature.
	// Default: 0.7
	Temperature float64 `yaml:"temperature" env:"SAMANTHA_AGENT_TEMPERATURE"`
}

// OpenAIConfig contains the model provider connection settings.
type OpenAIConfig struct {
	// APIKey authenticates against the API. Required for serve, chat and mcp.
	APIKey string `yaml:"api_key" env:"OPENAI_API_KEY"`

	// BaseURL overrides the API endpoint (proxies, compatible servers).
	// Default: "" (the official endpoint)
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL"`

	// Timeout bounds a single model call.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout" env:"SAMANTHA_OPENAI_TIMEOUT"`

	// MaxRetries is the number of retries for rate-limited or failed calls.
	// Default: 2
	MaxRetries int `yaml:"max_retries" env:"SAMANTHA_OPENAI_MAX_RETRIES"`
}

// TelegramConfig contains the bot transport settings.
type TelegramConfig struct {
	// Token is the bot token. When empty, serve runs without the bot.
	Token string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`

	// PollTimeout is the long-polling timeout in seconds.
	// Default: 30
	PollTimeout int `yaml:"poll_timeout" env:"SAMANTHA_TELEGRAM_POLL_TIMEOUT"`

	// RateInterval is the minimum interval between two messages of one user.
	// Default: 2s
	RateInterval time.Duration `yaml:"rate_interval" env:"SAMANTHA_TELEGRAM_RATE_INTERVAL"`

	// MaxMessageLength is the longest message Telegram accepts, in runes.
	// Default: 4096
	MaxMessageLength int `yaml:"max_message_length" env:"SAMANTHA_TELEGRAM_MAX_MESSAGE_LENGTH"`

	// Debug enables the bot library debug output.
	// Default: false
	Debug bool `yaml:"debug" env:"SAMANTHA_TELEGRAM_DEBUG"`
}

// ServerConfig contains the HTTP API server settings.
type ServerConfig struct {
	// Enabled starts the HTTP API with serve.
	// Default: true
	Enabled bool `yaml:"enabled" env:"SAMANTHA_SERVER_ENABLED"`

	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address" env:"SAMANTHA_SERVER_LISTEN_ADDRESS"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout" env:"SAMANTHA_SERVER_READ_TIMEOUT"`

	// WriteTimeout is the maximum duration for writing a response. Chat
	// requests call the model, so this must exceed openai.timeout.
	// Default: 90s
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SAMANTHA_SERVER_WRITE_TIMEOUT"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SAMANTHA_SERVER_IDLE_TIMEOUT"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SAMANTHA_SERVER_SHUTDOWN_TIMEOUT"`

	// APIKey is a single unrestricted key for the /v1 routes, merged with
	// APIKeys under the name "env".
	APIKey string `yaml:"api_key" env:"SAMANTHA_SERVER_API_KEY"`

	// APIKeys protect the /v1 routes. With no key configured the API is
	// open and should only listen on a loopback address.
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// APIKeyConfig is one HTTP API client.
type APIKeyConfig struct {
	// Name identifies the client in logs.
	Name string `yaml:"name"`

	// Key is the bearer token, at least 16 characters.
	Key string `yaml:"key"`

	// Users restricts the key to these user IDs. Empty means any user.
	Users []string `yaml:"users"`

	// Disabled rejects the key without removing it.
	Disabled bool `yaml:"disabled"`
}

// StorageConfig selects and configures the persistent store backend.
type StorageConfig struct {
	// Backend is the store type.
	// Options: "sqlite", "postgres", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend" env:"SAMANTHA_STORAGE_BACKEND"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres configures the PostgreSQL backend.
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/samantha.db"
	Path string `yaml:"path" env:"SAMANTHA_STORAGE_SQLITE_PATH"`

	// Driver is the database/sql driver name.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver" env:"SAMANTHA_STORAGE_SQLITE_DRIVER"`

	// BusyTimeout is how long to wait for a lock.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"SAMANTHA_STORAGE_SQLITE_BUSY_TIMEOUT"`

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval" env:"SAMANTHA_STORAGE_SQLITE_CHECKPOINT_INTERVAL"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	// DSN is the connection string. Required when backend is "postgres".
	DSN string `yaml:"dsn" env:"SAMANTHA_STORAGE_POSTGRES_DSN"`

	// MaxOpenConns caps the pool.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns" env:"SAMANTHA_STORAGE_POSTGRES_MAX_OPEN_CONNS"`

	// MaxIdleConns caps idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns" env:"SAMANTHA_STORAGE_POSTGRES_MAX_IDLE_CONNS"`

	// ConnMaxLifetime recycles connections.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"SAMANTHA_STORAGE_POSTGRES_CONN_MAX_LIFETIME"`
}

// MemoryConfig contains the memory tiering and consolidation settings.
type MemoryConfig struct {
	// ShortTermWindow is the number of recent turns forming short-term memory.
	// Default: 50
	ShortTermWindow int `yaml:"short_term_window" env:"SAMANTHA_MEMORY_SHORT_TERM_WINDOW"`

	// ContextTurns is the number of recent turns rendered into the context.
	// Default: 10
	ContextTurns int `yaml:"context_turns" env:"SAMANTHA_MEMORY_CONTEXT_TURNS"`

	// SummaryTurns is the number of recent turns fed to the summarizer.
	// Default: 20
	SummaryTurns int `yaml:"summary_turns" env:"SAMANTHA_MEMORY_SUMMARY_TURNS"`

	// MinTurnsForConsolidation is the number of stored turns required before
	// a summary is generated.
	// Default: 10
	MinTurnsForConsolidation int `yaml:"min_turns_for_consolidation" env:"SAMANTHA_MEMORY_MIN_TURNS_FOR_CONSOLIDATION"`

	// ConsolidationInterval is the age after which a summary is refreshed.
	// Default: 168h (7 days)
	ConsolidationInterval time.Duration `yaml:"consolidation_interval" env:"SAMANTHA_MEMORY_CONSOLIDATION_INTERVAL"`

	// ConsolidationTimeout bounds a background consolidation.
	// Default: 60s
	ConsolidationTimeout time.Duration `yaml:"consolidation_timeout" env:"SAMANTHA_MEMORY_CONSOLIDATION_TIMEOUT"`
}

// BudgetConfig contains the spending limits. Hot-reloadable.
type BudgetConfig struct {
	// DailyLimit is the per-user spend limit for one UTC day, in USD.
	// Default: 1.50
	DailyLimit float64 `yaml:"daily_limit" env:"SAMANTHA_BUDGET_DAILY_LIMIT"`

	// MonthlyLimit is the per-user spend limit for one UTC calendar month, in USD.
	// Default: 40.00
	MonthlyLimit float64 `yaml:"monthly_limit" env:"SAMANTHA_BUDGET_MONTHLY_LIMIT"`

	// WarningThreshold is the fraction of a limit that triggers a warning.
	// Default: 0.75
	WarningThreshold float64 `yaml:"warning_threshold" env:"SAMANTHA_BUDGET_WARNING_THRESHOLD"`

	// SevereThreshold is the fraction of a limit that triggers a severe warning.
	// Default: 0.90
	SevereThreshold float64 `yaml:"severe_threshold" env:"SAMANTHA_BUDGET_SEVERE_THRESHOLD"`

	// DefaultEstimate is the cost assumed for a request before it is made, in USD.
	// Default: 0.01
	DefaultEstimate float64 `yaml:"default_estimate" env:"SAMANTHA_BUDGET_DEFAULT_ESTIMATE"`
}

// PricingConfig is the per-model price table.
type PricingConfig struct {
	// Models maps a model name or prefix to its price. Must contain "default".
	Models map[string]ModelPricingConfig `yaml:"models"`
}

// ModelPricingConfig is the USD price per 1000 tokens.
type ModelPricingConfig struct {
	// Input is the cost per 1000 input tokens.
	Input float64 `yaml:"input"`

	// Output is the cost per 1000 output tokens.
	Output float64 `yaml:"output"`
}

// TokensConfig contains token counting settings.
type TokensConfig struct {
	// Encoding is the tiktoken encoding name.
	// Default: "cl100k_base"
	Encoding string `yaml:"encoding" env:"SAMANTHA_TOKENS_ENCODING"`
}

// SearchConfig contains web search settings.
type SearchConfig struct {
	// Enabled turns web search on.
	// Default: true
	Enabled bool `yaml:"enabled" env:"SAMANTHA_SEARCH_ENABLED"`

	// Triggers are the phrases that flag a message as search-worthy.
	// Default: see DefaultSearchTriggers
	Triggers []string `yaml:"triggers" env:"SAMANTHA_SEARCH_TRIGGERS" envSeparator:","`

	// CacheTTL is how long results are cached.
	// Default: 1h
	CacheTTL time.Duration `yaml:"cache_ttl" env:"SAMANTHA_SEARCH_CACHE_TTL"`

	// CacheSize is the maximum number of cached queries.
	// Default: 256
	CacheSize int `yaml:"cache_size" env:"SAMANTHA_SEARCH_CACHE_SIZE"`

	// MaxResults caps the results rendered into the prompt.
	// Default: 5
	MaxResults int `yaml:"max_results" env:"SAMANTHA_SEARCH_MAX_RESULTS"`

	// Timeout bounds one search.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout" env:"SAMANTHA_SEARCH_TIMEOUT"`
}

// RetentionConfig controls pruning of old turns and usage events.
type RetentionConfig struct {
	// Days is how long turns and usage events are kept.
	// Default: 30
	Days int `yaml:"days" env:"SAMANTHA_RETENTION_DAYS"`

	// PruneSchedule is the cron expression for scheduled pruning with serve.
	// Empty disables the scheduler; `samantha prune` still works.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule" env:"SAMANTHA_RETENTION_PRUNE_SCHEDULE"`

	// PruneUsage also prunes the usage ledger. Disable to keep spend history.
	// Default: true
	PruneUsage bool `yaml:"prune_usage" env:"SAMANTHA_RETENTION_PRUNE_USAGE"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level" env:"SAMANTHA_TELEMETRY_LOGGING_LEVEL"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format" env:"SAMANTHA_TELEMETRY_LOGGING_FORMAT"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source" env:"SAMANTHA_TELEMETRY_LOGGING_ADD_SOURCE"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled" env:"SAMANTHA_TELEMETRY_METRICS_ENABLED"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path" env:"SAMANTHA_TELEMETRY_METRICS_PATH"`

	// Namespace is the metric name prefix.
	// Default: "samantha"
	Namespace string `yaml:"namespace" env:"SAMANTHA_TELEMETRY_METRICS_NAMESPACE"`
}

// TracingConfig contains OpenTelemetry tracing configuration. Spans cover
// turns, model calls, consolidations and HTTP requests.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled" env:"SAMANTHA_TELEMETRY_TRACING_ENABLED"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint" env:"SAMANTHA_TELEMETRY_TRACING_ENDPOINT"`

	// Insecure disables TLS towards the collector.
	// Default: false
	Insecure bool `yaml:"insecure" env:"SAMANTHA_TELEMETRY_TRACING_INSECURE"`

	// Timeout bounds one export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout" env:"SAMANTHA_TELEMETRY_TRACING_TIMEOUT"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler" env:"SAMANTHA_TELEMETRY_TRACING_SAMPLER"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMANTHA_TELEMETRY_TRACING_SAMPLE_RATIO"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "samantha"
	ServiceName string `yaml:"service_name" env:"SAMANTHA_TELEMETRY_TRACING_SERVICE_NAME"`
}
