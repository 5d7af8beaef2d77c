package storage

import "fmt"

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Backend  string
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// Open creates the store named by cfg.Backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryBackend(), nil
	case BackendSQLite, "":
		return NewSQLiteBackendWithConfig(cfg.SQLite)
	case BackendPostgres:
		return NewPostgresBackend(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
