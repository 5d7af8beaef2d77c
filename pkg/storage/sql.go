package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// dialect captures the few places where SQLite and PostgreSQL differ.
// Queries are written with ? placeholders and rebound for dialects that
// use numbered parameters.
type dialect struct {
	name           string
	numbered       bool
	schema         string
	upsertLongTerm string
}

// SQLBackend implements Store on database/sql. It backs both the SQLite
// and the PostgreSQL stores; only the schema and the long-term merge
// statement differ between them.
//
// All timestamps are stored as UTC unix nanoseconds so window queries and
// ordering behave the same on every dialect. Costs are stored as exact
// decimal text and summed in Go.
type SQLBackend struct {
	db      *sql.DB
	dialect dialect

	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once

	appendTurnStmt     *sql.Stmt
	recentTurnsStmt    *sql.Stmt
	turnStatsStmt      *sql.Stmt
	deleteUserStmt     *sql.Stmt
	pruneTurnsStmt     *sql.Stmt
	getProfileStmt     *sql.Stmt
	setSummaryStmt     *sql.Stmt
	upsertLongTermStmt *sql.Stmt
	clearProfileStmt   *sql.Stmt
	appendUsageStmt    *sql.Stmt
	sumCostStmt        *sql.Stmt
	listUsageStmt      *sql.Stmt
	pruneUsageStmt     *sql.Stmt
}

func newSQLBackend(db *sql.DB, d dialect) (*SQLBackend, error) {
	b := &SQLBackend{
		db:      db,
		dialect: d,
		done:    make(chan struct{}),
	}

	if _, err := db.Exec(d.schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := b.prepareStatements(); err != nil {
		b.closeStatements()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return b, nil
}

func (b *SQLBackend) prepareStatements() error {
	stmts := []struct {
		dst   **sql.Stmt
		name  string
		query string
	}{
		{&b.appendTurnStmt, "append turn", `
			INSERT INTO conversation_turns (user_id, text, user_authored, token_count, created_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id`},
		// Newest first with a limit, reversed in Go.
		{&b.recentTurnsStmt, "recent turns", `
			SELECT id, user_id, text, user_authored, token_count, created_at
			FROM conversation_turns
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?`},
		{&b.turnStatsStmt, "turn stats", `
			SELECT COUNT(*), COALESCE(SUM(token_count), 0)
			FROM conversation_turns
			WHERE user_id = ?`},
		{&b.deleteUserStmt, "delete user turns", `
			DELETE FROM conversation_turns WHERE user_id = ?`},
		{&b.pruneTurnsStmt, "prune turns", `
			DELETE FROM conversation_turns WHERE created_at < ?`},
		{&b.getProfileStmt, "get profile", `
			SELECT user_id, summary, summary_updated_at, long_term, long_term_updated_at
			FROM memory_profiles
			WHERE user_id = ?`},
		{&b.setSummaryStmt, "set summary", `
			INSERT INTO memory_profiles (user_id, summary, summary_updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET
				summary = excluded.summary,
				summary_updated_at = excluded.summary_updated_at`},
		{&b.upsertLongTermStmt, "upsert long term", b.dialect.upsertLongTerm},
		{&b.clearProfileStmt, "clear profile", `
			DELETE FROM memory_profiles WHERE user_id = ?`},
		{&b.appendUsageStmt, "append usage", `
			INSERT INTO usage_events (user_id, input_tokens, output_tokens, cost_usd, message_type, model, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id`},
		{&b.sumCostStmt, "sum cost", `
			SELECT cost_usd FROM usage_events
			WHERE user_id = ? AND created_at >= ? AND created_at < ?`},
		{&b.listUsageStmt, "list usage", `
			SELECT id, user_id, input_tokens, output_tokens, cost_usd, message_type, model, created_at
			FROM usage_events
			WHERE user_id = ? AND created_at >= ? AND created_at < ?
			ORDER BY created_at DESC, id DESC`},
		{&b.pruneUsageStmt, "prune usage", `
			DELETE FROM usage_events WHERE created_at < ?`},
	}

	for _, s := range stmts {
		stmt, err := b.db.Prepare(b.rebind(s.query))
		if err != nil {
			return fmt.Errorf("failed to prepare %s statement: %w", s.name, err)
		}
		*s.dst = stmt
	}
	return nil
}

// rebind rewrites ? placeholders to $1, $2, ... for numbered dialects.
func (b *SQLBackend) rebind(query string) string {
	if !b.dialect.numbered {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (b *SQLBackend) fail(op string, err error) error {
	return newError(b.dialect.name, op, err)
}

// AppendTurn appends a turn and assigns its ID.
func (b *SQLBackend) AppendTurn(ctx context.Context, turn *ConversationTurn) error {
	if turn == nil || turn.UserID == "" {
		return invalid(b.dialect.name, "append_turn", "turn with user id required")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	err := b.appendTurnStmt.QueryRowContext(ctx,
		turn.UserID,
		turn.Text,
		turn.UserAuthored,
		turn.TokenCount,
		turn.CreatedAt.UTC().UnixNano(),
	).Scan(&turn.ID)
	return b.fail("append_turn", err)
}

// RecentTurns returns at most limit of the newest turns in chronological order.
func (b *SQLBackend) RecentTurns(ctx context.Context, userID string, limit int) ([]*ConversationTurn, error) {
	if userID == "" {
		return nil, invalid(b.dialect.name, "recent_turns", "user id required")
	}
	var lim any = limit
	if limit <= 0 {
		// SQLite treats a negative limit as unbounded; PostgreSQL wants NULL.
		lim = -1
		if b.dialect.numbered {
			lim = nil
		}
	}
	return b.queryTurns(ctx, userID, lim)
}

func (b *SQLBackend) queryTurns(ctx context.Context, userID string, limit any) ([]*ConversationTurn, error) {
	rows, err := b.recentTurnsStmt.QueryContext(ctx, userID, limit)
	if err != nil {
		return nil, b.fail("recent_turns", err)
	}
	defer rows.Close()

	var turns []*ConversationTurn
	for rows.Next() {
		var (
			t         ConversationTurn
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Text, &t.UserAuthored, &t.TokenCount, &createdAt); err != nil {
			return nil, b.fail("recent_turns", fmt.Errorf("failed to scan row: %w", err))
		}
		t.CreatedAt = time.Unix(0, createdAt).UTC()
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, b.fail("recent_turns", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// TurnStats counts the turns and tokens recorded for a user.
func (b *SQLBackend) TurnStats(ctx context.Context, userID string) (TurnStats, error) {
	var stats TurnStats
	err := b.turnStatsStmt.QueryRowContext(ctx, userID).Scan(&stats.Count, &stats.TotalTokens)
	if err != nil {
		return TurnStats{}, b.fail("turn_stats", err)
	}
	return stats, nil
}

// DeleteUserTurns removes every turn of a user.
func (b *SQLBackend) DeleteUserTurns(ctx context.Context, userID string) (int64, error) {
	return b.execCount(ctx, "delete_user_turns", b.deleteUserStmt, userID)
}

// PruneTurns deletes turns created before the cutoff.
func (b *SQLBackend) PruneTurns(ctx context.Context, before time.Time) (int64, error) {
	return b.execCount(ctx, "prune_turns", b.pruneTurnsStmt, before.UTC().UnixNano())
}

// GetProfile returns the user's profile, or nil when none exists.
func (b *SQLBackend) GetProfile(ctx context.Context, userID string) (*MemoryProfile, error) {
	var (
		p                 MemoryProfile
		summaryUpdatedAt  sql.NullInt64
		longTerm          sql.NullString
		longTermUpdatedAt sql.NullInt64
	)

	err := b.getProfileStmt.QueryRowContext(ctx, userID).Scan(
		&p.UserID,
		&p.Summary,
		&summaryUpdatedAt,
		&longTerm,
		&longTermUpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, b.fail("get_profile", err)
	}

	if summaryUpdatedAt.Valid {
		p.SummaryUpdatedAt = time.Unix(0, summaryUpdatedAt.Int64).UTC()
	}
	if longTermUpdatedAt.Valid {
		p.LongTermUpdatedAt = time.Unix(0, longTermUpdatedAt.Int64).UTC()
	}
	if longTerm.Valid && longTerm.String != "" {
		if err := json.Unmarshal([]byte(longTerm.String), &p.LongTerm); err != nil {
			return nil, b.fail("get_profile", fmt.Errorf("failed to unmarshal long term memory: %w", err))
		}
	}

	return &p, nil
}

// SetSummary overwrites the medium-term summary, creating the profile if needed.
func (b *SQLBackend) SetSummary(ctx context.Context, userID, summary string, at time.Time) error {
	if userID == "" {
		return invalid(b.dialect.name, "set_summary", "user id required")
	}
	_, err := b.setSummaryStmt.ExecContext(ctx, userID, summary, at.UTC().UnixNano())
	return b.fail("set_summary", err)
}

// UpsertLongTerm merges one key into the long-term map in a single
// statement, so concurrent writers of different keys cannot lose updates.
// A nil value removes the key.
func (b *SQLBackend) UpsertLongTerm(ctx context.Context, userID, key string, value any, at time.Time) error {
	if err := checkProfileKey(b.dialect.name, userID, key); err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return invalid(b.dialect.name, "upsert_long_term", fmt.Sprintf("value for %q is not serializable: %v", key, err))
	}

	_, err = b.upsertLongTermStmt.ExecContext(ctx, userID, key, string(raw), at.UTC().UnixNano())
	return b.fail("upsert_long_term", err)
}

// ClearProfile removes the profile row of a user.
func (b *SQLBackend) ClearProfile(ctx context.Context, userID string) error {
	_, err := b.clearProfileStmt.ExecContext(ctx, userID)
	return b.fail("clear_profile", err)
}

// AppendUsage appends a usage event and assigns its ID.
func (b *SQLBackend) AppendUsage(ctx context.Context, event *UsageEvent) error {
	if event == nil || event.UserID == "" {
		return invalid(b.dialect.name, "append_usage", "event with user id required")
	}
	if event.CostUSD.IsNegative() {
		return invalid(b.dialect.name, "append_usage", "cost cannot be negative")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	err := b.appendUsageStmt.QueryRowContext(ctx,
		event.UserID,
		event.InputTokens,
		event.OutputTokens,
		event.CostUSD.String(),
		event.MessageType,
		event.Model,
		event.CreatedAt.UTC().UnixNano(),
	).Scan(&event.ID)
	return b.fail("append_usage", err)
}

// SumCost returns the exact decimal sum of costs in [from, to).
func (b *SQLBackend) SumCost(ctx context.Context, userID string, from, to time.Time) (decimal.Decimal, error) {
	rows, err := b.sumCostStmt.QueryContext(ctx, userID, from.UTC().UnixNano(), to.UTC().UnixNano())
	if err != nil {
		return decimal.Zero, b.fail("sum_cost", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var cost decimal.Decimal
		if err := rows.Scan(&cost); err != nil {
			return decimal.Zero, b.fail("sum_cost", fmt.Errorf("failed to scan cost: %w", err))
		}
		total = total.Add(cost)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, b.fail("sum_cost", err)
	}
	return total, nil
}

// ListUsage returns events in [from, to), newest first.
func (b *SQLBackend) ListUsage(ctx context.Context, userID string, from, to time.Time) ([]*UsageEvent, error) {
	rows, err := b.listUsageStmt.QueryContext(ctx, userID, from.UTC().UnixNano(), to.UTC().UnixNano())
	if err != nil {
		return nil, b.fail("list_usage", err)
	}
	defer rows.Close()

	var events []*UsageEvent
	for rows.Next() {
		var (
			e         UsageEvent
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.InputTokens, &e.OutputTokens, &e.CostUSD, &e.MessageType, &e.Model, &createdAt); err != nil {
			return nil, b.fail("list_usage", fmt.Errorf("failed to scan row: %w", err))
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, b.fail("list_usage", err)
	}
	return events, nil
}

// PruneUsage deletes events created before the cutoff.
func (b *SQLBackend) PruneUsage(ctx context.Context, before time.Time) (int64, error) {
	return b.execCount(ctx, "prune_usage", b.pruneUsageStmt, before.UTC().UnixNano())
}

func (b *SQLBackend) execCount(ctx context.Context, op string, stmt *sql.Stmt, args ...any) (int64, error) {
	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, b.fail(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, b.fail(op, fmt.Errorf("failed to get rows affected: %w", err))
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.fail("ping", b.db.PingContext(ctx))
}

// Close releases statements and the connection pool.
// Close is idempotent and safe to call multiple times.
func (b *SQLBackend) Close() error {
	var closeErr error

	b.closeOnce.Do(func() {
		close(b.done)
		b.closeStatements()

		if b.checkpointInterval > 0 {
			_, _ = b.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		}
		closeErr = b.db.Close()
	})

	return closeErr
}

func (b *SQLBackend) closeStatements() {
	for _, stmt := range []*sql.Stmt{
		b.appendTurnStmt, b.recentTurnsStmt, b.turnStatsStmt, b.deleteUserStmt,
		b.pruneTurnsStmt, b.getProfileStmt, b.setSummaryStmt, b.upsertLongTermStmt,
		b.clearProfileStmt, b.appendUsageStmt, b.sumCostStmt, b.listUsageStmt,
		b.pruneUsageStmt,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// checkpointLoop runs periodic WAL checkpoints until Close.
func (b *SQLBackend) checkpointLoop() {
	ticker := time.NewTicker(b.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = b.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-b.done:
			return
		}
	}
}
