// Package storage persists the conversation turn log, per-user memory
// profiles and the usage ledger.
//
// # Backends
//
// Three interchangeable implementations of Store are provided:
//
//   - MemoryBackend: process memory, for tests and throwaway runs
//   - SQLite (NewSQLiteBackend): local single-file store, pure Go driver by
//     default or the cgo driver when Driver is DriverMattn
//   - PostgreSQL (NewPostgresBackend): durable shared store
//
// The SQL backends share one implementation and differ only in schema and
// in the statement that merges a long-term key.
//
// # Long-Term Writes
//
// UpsertLongTerm is a single conditional write on every backend. Two
// concurrent upserts of different keys for the same user both survive.
//
// # Time Windows
//
// SumCost and ListUsage select events with from <= created_at < to.
// Timestamps are normalized to UTC before they are stored.
package storage
