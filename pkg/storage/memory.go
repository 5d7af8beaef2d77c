package storage

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const memoryBackendName = "memory"

// MemoryBackend implements Store in process memory.
// All data is lost when the process exits. Records are copied on the way in
// and out so callers can never mutate stored turns or events.
//
// MemoryBackend is thread-safe; a single RWMutex serializes writers, which
// also makes UpsertLongTerm atomic per user.
type MemoryBackend struct {
	mu sync.RWMutex

	turns    map[string][]*ConversationTurn
	usage    map[string][]*UsageEvent
	profiles map[string]*MemoryProfile

	nextTurnID  int64
	nextUsageID int64
	closed      bool
}

// NewMemoryBackend creates an empty in-memory store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		turns:    make(map[string][]*ConversationTurn),
		usage:    make(map[string][]*UsageEvent),
		profiles: make(map[string]*MemoryProfile),
	}
}

// AppendTurn appends a turn and assigns its ID.
func (m *MemoryBackend) AppendTurn(ctx context.Context, turn *ConversationTurn) error {
	if turn == nil || turn.UserID == "" {
		return invalid(memoryBackendName, "append_turn", "turn with user id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return newError(memoryBackendName, "append_turn", ErrClosed)
	}

	m.nextTurnID++
	turn.ID = m.nextTurnID
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	stored := *turn
	m.turns[turn.UserID] = append(m.turns[turn.UserID], &stored)
	return nil
}

// RecentTurns returns at most limit of the newest turns in chronological order.
func (m *MemoryBackend) RecentTurns(ctx context.Context, userID string, limit int) ([]*ConversationTurn, error) {
	if userID == "" {
		return nil, invalid(memoryBackendName, "recent_turns", "user id required")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, newError(memoryBackendName, "recent_turns", ErrClosed)
	}

	all := make([]*ConversationTurn, len(m.turns[userID]))
	copy(all, m.turns[userID])
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]*ConversationTurn, len(all))
	for i, t := range all {
		c := *t
		out[i] = &c
	}
	return out, nil
}

// TurnStats counts the turns and tokens recorded for a user.
func (m *MemoryBackend) TurnStats(ctx context.Context, userID string) (TurnStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return TurnStats{}, newError(memoryBackendName, "turn_stats", ErrClosed)
	}

	var stats TurnStats
	for _, t := range m.turns[userID] {
		stats.Count++
		stats.TotalTokens += int64(t.TokenCount)
	}
	return stats, nil
}

// DeleteUserTurns removes every turn of a user.
func (m *MemoryBackend) DeleteUserTurns(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, newError(memoryBackendName, "delete_user_turns", ErrClosed)
	}

	n := int64(len(m.turns[userID]))
	delete(m.turns, userID)
	return n, nil
}

// PruneTurns deletes turns created before the cutoff.
func (m *MemoryBackend) PruneTurns(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, newError(memoryBackendName, "prune_turns", ErrClosed)
	}

	var deleted int64
	for user, turns := range m.turns {
		kept := turns[:0]
		for _, t := range turns {
			if t.CreatedAt.Before(before) {
				deleted++
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			delete(m.turns, user)
		} else {
			m.turns[user] = kept
		}
	}
	return deleted, nil
}

// GetProfile returns a copy of the user's profile, or nil.
func (m *MemoryBackend) GetProfile(ctx context.Context, userID string) (*MemoryProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, newError(memoryBackendName, "get_profile", ErrClosed)
	}

	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	c := *p
	c.LongTerm = maps.Clone(p.LongTerm)
	return &c, nil
}

// SetSummary overwrites the medium-term summary.
func (m *MemoryBackend) SetSummary(ctx context.Context, userID, summary string, at time.Time) error {
	if userID == "" {
		return invalid(memoryBackendName, "set_summary", "user id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return newError(memoryBackendName, "set_summary", ErrClosed)
	}

	p := m.profileLocked(userID)
	p.Summary = summary
	p.SummaryUpdatedAt = at.UTC()
	return nil
}

// UpsertLongTerm merges one key into the long-term map under the write lock.
// A nil value removes the key.
func (m *MemoryBackend) UpsertLongTerm(ctx context.Context, userID, key string, value any, at time.Time) error {
	if err := checkProfileKey(memoryBackendName, userID, key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return newError(memoryBackendName, "upsert_long_term", ErrClosed)
	}

	p := m.profileLocked(userID)
	if p.LongTerm == nil {
		p.LongTerm = make(map[string]any)
	}
	if value == nil {
		delete(p.LongTerm, key)
	} else {
		p.LongTerm[key] = value
	}
	p.LongTermUpdatedAt = at.UTC()
	return nil
}

// ClearProfile removes the profile of a user.
func (m *MemoryBackend) ClearProfile(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return newError(memoryBackendName, "clear_profile", ErrClosed)
	}

	delete(m.profiles, userID)
	return nil
}

func (m *MemoryBackend) profileLocked(userID string) *MemoryProfile {
	p, ok := m.profiles[userID]
	if !ok {
		p = &MemoryProfile{UserID: userID}
		m.profiles[userID] = p
	}
	return p
}

// AppendUsage appends a usage event and assigns its ID.
func (m *MemoryBackend) AppendUsage(ctx context.Context, event *UsageEvent) error {
	if event == nil || event.UserID == "" {
		return invalid(memoryBackendName, "append_usage", "event with user id required")
	}
	if event.CostUSD.IsNegative() {
		return invalid(memoryBackendName, "append_usage", "cost cannot be negative")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return newError(memoryBackendName, "append_usage", ErrClosed)
	}

	m.nextUsageID++
	event.ID = m.nextUsageID
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	stored := *event
	m.usage[event.UserID] = append(m.usage[event.UserID], &stored)
	return nil
}

// SumCost sums CostUSD over from <= CreatedAt < to.
func (m *MemoryBackend) SumCost(ctx context.Context, userID string, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return decimal.Zero, newError(memoryBackendName, "sum_cost", ErrClosed)
	}

	total := decimal.Zero
	for _, e := range m.usage[userID] {
		if inWindow(e.CreatedAt, from, to) {
			total = total.Add(e.CostUSD)
		}
	}
	return total, nil
}

// ListUsage returns events in the window, newest first.
func (m *MemoryBackend) ListUsage(ctx context.Context, userID string, from, to time.Time) ([]*UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, newError(memoryBackendName, "list_usage", ErrClosed)
	}

	var out []*UsageEvent
	for _, e := range m.usage[userID] {
		if inWindow(e.CreatedAt, from, to) {
			c := *e
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// PruneUsage deletes events created before the cutoff.
func (m *MemoryBackend) PruneUsage(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, newError(memoryBackendName, "prune_usage", ErrClosed)
	}

	var deleted int64
	for user, events := range m.usage {
		kept := events[:0]
		for _, e := range events {
			if e.CreatedAt.Before(before) {
				deleted++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(m.usage, user)
		} else {
			m.usage[user] = kept
		}
	}
	return deleted, nil
}

// Ping always succeeds on an open store.
func (m *MemoryBackend) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return newError(memoryBackendName, "ping", ErrClosed)
	}
	return nil
}

// Close marks the store closed. It is idempotent.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
