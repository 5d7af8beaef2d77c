package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ConversationTurn is a single message exchanged with a user.
// Turns are immutable once written and ordered by CreatedAt, then ID.
type ConversationTurn struct {
	// ID is assigned by the backend on append.
	ID int64

	// UserID identifies the conversation owner.
	UserID string

	// Text is the message body.
	Text string

	// UserAuthored is true for inbound messages and false for assistant replies.
	UserAuthored bool

	// TokenCount is the token estimate computed when the turn was recorded.
	TokenCount int

	// CreatedAt is the UTC time the turn was recorded.
	CreatedAt time.Time
}

// MemoryProfile holds the medium and long term memory tiers for one user.
// There is at most one profile per user.
type MemoryProfile struct {
	UserID string

	// Summary is the rolling medium-term summary. It is replaced wholesale
	// on consolidation.
	Summary string

	// SummaryUpdatedAt is zero when no summary has ever been written.
	SummaryUpdatedAt time.Time

	// LongTerm maps profile keys (custom_prompt, communication_style, ...)
	// to scalar or text values. Writes merge single keys.
	LongTerm map[string]any

	// LongTermUpdatedAt is refreshed on every long-term write.
	LongTermUpdatedAt time.Time
}

// HasSummary reports whether a medium-term summary exists.
func (p *MemoryProfile) HasSummary() bool {
	return p != nil && p.Summary != ""
}

// HasLongTerm reports whether any long-term key exists.
func (p *MemoryProfile) HasLongTerm() bool {
	return p != nil && len(p.LongTerm) > 0
}

// UsageEvent is one entry of the append-only cost ledger.
type UsageEvent struct {
	ID           int64
	UserID       string
	InputTokens  int
	OutputTokens int

	// CostUSD is never negative.
	CostUSD decimal.Decimal

	// MessageType classifies the call, e.g. "chat" or "summary".
	MessageType string

	Model     string
	CreatedAt time.Time
}

// TurnStats aggregates the turn log of a single user.
type TurnStats struct {
	Count       int64
	TotalTokens int64
}

// LedgerStore persists usage events.
// Implementations must be safe for concurrent use.
type LedgerStore interface {
	// AppendUsage appends an event and assigns its ID.
	AppendUsage(ctx context.Context, event *UsageEvent) error

	// SumCost returns the exact sum of CostUSD for events with
	// from <= CreatedAt < to.
	SumCost(ctx context.Context, userID string, from, to time.Time) (decimal.Decimal, error)

	// ListUsage returns events with from <= CreatedAt < to, newest first.
	ListUsage(ctx context.Context, userID string, from, to time.Time) ([]*UsageEvent, error)

	// PruneUsage deletes events created before the cutoff for all users.
	PruneUsage(ctx context.Context, before time.Time) (int64, error)
}

// MemoryStore persists the turn log and memory profiles.
// Implementations must be safe for concurrent use.
type MemoryStore interface {
	// AppendTurn appends a turn and assigns its ID.
	AppendTurn(ctx context.Context, turn *ConversationTurn) error

	// RecentTurns returns at most limit of the newest turns in chronological order.
	RecentTurns(ctx context.Context, userID string, limit int) ([]*ConversationTurn, error)

	// TurnStats counts the turns and tokens recorded for a user.
	TurnStats(ctx context.Context, userID string) (TurnStats, error)

	// DeleteUserTurns removes every turn of a user.
	DeleteUserTurns(ctx context.Context, userID string) (int64, error)

	// PruneTurns deletes turns created before the cutoff for all users.
	PruneTurns(ctx context.Context, before time.Time) (int64, error)

	// GetProfile returns nil without error when the user has no profile.
	GetProfile(ctx context.Context, userID string) (*MemoryProfile, error)

	// SetSummary overwrites the medium-term summary, creating the profile if needed.
	SetSummary(ctx context.Context, userID, summary string, at time.Time) error

	// UpsertLongTerm sets one top-level key of the long-term map, replacing
	// its previous value whole; a nil value removes the key. Keys must not
	// contain double quotes. Concurrent calls for the same user with
	// different keys must all be preserved.
	UpsertLongTerm(ctx context.Context, userID, key string, value any, at time.Time) error

	// ClearProfile removes the profile row of a user.
	ClearProfile(ctx context.Context, userID string) error
}

// Store is a complete persistence backend.
type Store interface {
	LedgerStore
	MemoryStore

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources. The store must not be used afterwards.
	Close() error
}
