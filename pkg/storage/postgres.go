package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver, registered as "postgres"
)

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	// DSN is a lib/pq connection string or URL.
	DSN string

	// MaxOpenConns caps the pool size.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns caps idle connections.
	// Default: 5
	MaxIdleConns int

	// ConnMaxLifetime recycles connections.
	// Default: 30 minutes
	ConnMaxLifetime time.Duration

	// ConnectTimeout bounds the initial ping.
	// Default: 10 seconds
	ConnectTimeout time.Duration
}

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema: `
	CREATE TABLE IF NOT EXISTS conversation_turns (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		user_authored BOOLEAN NOT NULL,
		token_count INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_user_created ON conversation_turns(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON conversation_turns(created_at);

	CREATE TABLE IF NOT EXISTS memory_profiles (
		user_id TEXT PRIMARY KEY,
		summary TEXT NOT NULL DEFAULT '',
		summary_updated_at BIGINT,
		long_term JSONB,
		long_term_updated_at BIGINT
	);

	CREATE TABLE IF NOT EXISTS usage_events (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd NUMERIC(20, 10) NOT NULL CHECK (cost_usd >= 0),
		message_type TEXT NOT NULL DEFAULT 'chat',
		model TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_user_created ON usage_events(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_usage_created ON usage_events(created_at);
	`,
	// The row lock taken by ON CONFLICT serializes writers of the same user.
	upsertLongTerm: `
		INSERT INTO memory_profiles (user_id, long_term, long_term_updated_at)
		VALUES ($1, CASE WHEN $3::jsonb = 'null'::jsonb THEN '{}'::jsonb ELSE jsonb_build_object($2::text, $3::jsonb) END, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			long_term = CASE WHEN $3::jsonb = 'null'::jsonb
				THEN COALESCE(memory_profiles.long_term, '{}'::jsonb) - $2::text
				ELSE COALESCE(memory_profiles.long_term, '{}'::jsonb) || jsonb_build_object($2::text, $3::jsonb)
			END,
			long_term_updated_at = excluded.long_term_updated_at`,
}

// NewPostgresBackend connects to PostgreSQL and ensures the schema exists.
func NewPostgresBackend(cfg PostgresConfig) (*SQLBackend, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	backend, err := newSQLBackend(db, postgresDialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return backend, nil
}
