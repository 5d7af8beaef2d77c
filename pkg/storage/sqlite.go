package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go SQLite driver, registered as "sqlite"
)

const (
	// DriverModernc selects the pure Go modernc.org/sqlite driver.
	DriverModernc = "sqlite"

	// DriverMattn selects the cgo github.com/mattn/go-sqlite3 driver.
	DriverMattn = "sqlite3"
)

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver is DriverModernc or DriverMattn.
	// Default: DriverModernc
	Driver string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `
	CREATE TABLE IF NOT EXISTS conversation_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		user_authored INTEGER NOT NULL,
		token_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_user_created ON conversation_turns(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON conversation_turns(created_at);

	CREATE TABLE IF NOT EXISTS memory_profiles (
		user_id TEXT PRIMARY KEY,
		summary TEXT NOT NULL DEFAULT '',
		summary_updated_at INTEGER,
		long_term TEXT,
		long_term_updated_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS usage_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd TEXT NOT NULL,
		message_type TEXT NOT NULL DEFAULT 'chat',
		model TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_user_created ON usage_events(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_usage_created ON usage_events(created_at);
	`,
	// The key is replaced at the top level only; a JSON null removes it.
	upsertLongTerm: `
		INSERT INTO memory_profiles (user_id, long_term, long_term_updated_at)
		VALUES (?1, CASE WHEN ?3 = 'null' THEN '{}' ELSE json_object(?2, json(?3)) END, ?4)
		ON CONFLICT (user_id) DO UPDATE SET
			long_term = CASE WHEN ?3 = 'null'
				THEN json_remove(COALESCE(memory_profiles.long_term, '{}'), '$."' || ?2 || '"')
				ELSE json_set(COALESCE(memory_profiles.long_term, '{}'), '$."' || ?2 || '"', json(?3))
			END,
			long_term_updated_at = excluded.long_term_updated_at`,
}

// NewSQLiteBackend creates a SQLite store with default settings.
func NewSQLiteBackend(path string) (*SQLBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteConfig{Path: path})
}

// NewSQLiteBackendWithConfig creates a SQLite store. The database runs in
// WAL mode with a single connection, since SQLite only supports one writer.
func NewSQLiteBackendWithConfig(cfg SQLiteConfig) (*SQLBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	dsn, err := sqliteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend, err := newSQLBackend(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	backend.checkpointInterval = cfg.CheckpointInterval
	go backend.checkpointLoop()

	return backend, nil
}

// sqliteDSN builds a connection string; the two drivers spell pragmas differently.
func sqliteDSN(cfg SQLiteConfig) (string, error) {
	ms := int(cfg.BusyTimeout.Milliseconds())
	switch cfg.Driver {
	case DriverModernc:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
			cfg.Path, ms), nil
	case DriverMattn:
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
			cfg.Path, ms), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
}
