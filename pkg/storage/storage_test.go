package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryBackend()
		},
		"sqlite": func(t *testing.T) Store {
			store, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "test.db"))
			if err != nil {
				t.Fatalf("failed to create sqlite backend: %v", err)
			}
			return store
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, store Store)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			fn(t, store)
		})
	}
}

func TestStore_RecentTurnsChronological(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		for i := 0; i < 5; i++ {
			turn := &ConversationTurn{
				UserID:       "u1",
				Text:         fmt.Sprintf("msg-%d", i),
				UserAuthored: i%2 == 0,
				TokenCount:   i + 1,
				CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			}
			if err := store.AppendTurn(ctx, turn); err != nil {
				t.Fatalf("AppendTurn failed: %v", err)
			}
			if turn.ID == 0 {
				t.Error("Expected ID to be assigned")
			}
		}
		if err := store.AppendTurn(ctx, &ConversationTurn{UserID: "u2", Text: "other", CreatedAt: base}); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}

		turns, err := store.RecentTurns(ctx, "u1", 3)
		if err != nil {
			t.Fatalf("RecentTurns failed: %v", err)
		}
		if len(turns) != 3 {
			t.Fatalf("Expected 3 turns, got %d", len(turns))
		}
		for i, want := range []string{"msg-2", "msg-3", "msg-4"} {
			if turns[i].Text != want {
				t.Errorf("Turn %d: expected %q, got %q", i, want, turns[i].Text)
			}
		}
		if !turns[0].UserAuthored || turns[1].UserAuthored {
			t.Error("Expected authorship to round-trip")
		}
		if !turns[2].CreatedAt.Equal(base.Add(4 * time.Minute)) {
			t.Errorf("Expected created_at %v, got %v", base.Add(4*time.Minute), turns[2].CreatedAt)
		}

		all, err := store.RecentTurns(ctx, "u1", 0)
		if err != nil {
			t.Fatalf("RecentTurns without limit failed: %v", err)
		}
		if len(all) != 5 {
			t.Errorf("Expected 5 turns without limit, got %d", len(all))
		}

		stats, err := store.TurnStats(ctx, "u1")
		if err != nil {
			t.Fatalf("TurnStats failed: %v", err)
		}
		if stats.Count != 5 || stats.TotalTokens != 15 {
			t.Errorf("Expected 5 turns / 15 tokens, got %d / %d", stats.Count, stats.TotalTokens)
		}
	})
}

func TestStore_EqualTimestampsKeepInsertOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		for _, text := range []string{"question", "answer"} {
			if err := store.AppendTurn(ctx, &ConversationTurn{UserID: "u1", Text: text, CreatedAt: at}); err != nil {
				t.Fatalf("AppendTurn failed: %v", err)
			}
		}

		turns, err := store.RecentTurns(ctx, "u1", 10)
		if err != nil {
			t.Fatalf("RecentTurns failed: %v", err)
		}
		if len(turns) != 2 || turns[0].Text != "question" || turns[1].Text != "answer" {
			t.Errorf("Expected insert order for equal timestamps, got %+v", turns)
		}
	})
}

func TestStore_LongTermMerge(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		if err := store.UpsertLongTerm(ctx, "u1", "a", 1, now); err != nil {
			t.Fatalf("UpsertLongTerm a failed: %v", err)
		}
		if err := store.UpsertLongTerm(ctx, "u1", "b", 2, now); err != nil {
			t.Fatalf("UpsertLongTerm b failed: %v", err)
		}

		profile, err := store.GetProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if profile == nil {
			t.Fatal("Expected profile, got nil")
		}
		if len(profile.LongTerm) != 2 {
			t.Fatalf("Expected 2 keys, got %v", profile.LongTerm)
		}
		if fmt.Sprint(profile.LongTerm["a"]) != "1" || fmt.Sprint(profile.LongTerm["b"]) != "2" {
			t.Errorf("Expected {a:1 b:2}, got %v", profile.LongTerm)
		}
		if profile.LongTermUpdatedAt.IsZero() {
			t.Error("Expected long term timestamp to be set")
		}
		if profile.HasSummary() {
			t.Error("Expected no summary")
		}

		// Overwrite one key, delete the other.
		if err := store.UpsertLongTerm(ctx, "u1", "a", "changed", now); err != nil {
			t.Fatalf("UpsertLongTerm overwrite failed: %v", err)
		}
		if err := store.UpsertLongTerm(ctx, "u1", "b", nil, now); err != nil {
			t.Fatalf("UpsertLongTerm delete failed: %v", err)
		}
		profile, _ = store.GetProfile(ctx, "u1")
		if profile.LongTerm["a"] != "changed" {
			t.Errorf("Expected a=changed, got %v", profile.LongTerm["a"])
		}
		if _, ok := profile.LongTerm["b"]; ok {
			t.Error("Expected b to be removed by nil value")
		}
	})
}

func TestStore_LongTermReplacesObjectValues(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		now := time.Now().UTC()

		first := map[string]any{"a": 1, "nested": map[string]any{"x": 1}}
		if err := store.UpsertLongTerm(ctx, "u1", "prefs", first, now); err != nil {
			t.Fatalf("UpsertLongTerm first failed: %v", err)
		}
		if err := store.UpsertLongTerm(ctx, "u1", "other", "kept", now); err != nil {
			t.Fatalf("UpsertLongTerm other failed: %v", err)
		}
		if err := store.UpsertLongTerm(ctx, "u1", "prefs", map[string]any{"b": 2}, now); err != nil {
			t.Fatalf("UpsertLongTerm second failed: %v", err)
		}

		profile, err := store.GetProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got := fmt.Sprint(profile.LongTerm["prefs"]); got != "map[b:2]" {
			t.Errorf("Expected prefs to be replaced with map[b:2], got %s", got)
		}
		if profile.LongTerm["other"] != "kept" {
			t.Errorf("Expected other=kept, got %v", profile.LongTerm["other"])
		}

		// Removing an absent key still creates an empty profile.
		if err := store.UpsertLongTerm(ctx, "u2", "prefs", nil, now); err != nil {
			t.Fatalf("UpsertLongTerm nil failed: %v", err)
		}
		profile, _ = store.GetProfile(ctx, "u2")
		if profile != nil && len(profile.LongTerm) != 0 {
			t.Errorf("Expected no long term keys, got %v", profile.LongTerm)
		}
	})
}

func TestStore_LongTermRejectsQuotedKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		err := store.UpsertLongTerm(context.Background(), "u1", `a"b`, 1, time.Now())
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestStore_ConcurrentLongTermUpserts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		const writers = 20

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("key-%02d", i)
				if err := store.UpsertLongTerm(ctx, "u1", key, i, time.Now()); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent upsert failed: %v", err)
		}

		profile, err := store.GetProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if len(profile.LongTerm) != writers {
			t.Errorf("Expected %d keys after concurrent upserts, got %d", writers, len(profile.LongTerm))
		}
	})
}

func TestStore_SummaryOverwrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		second := first.Add(8 * 24 * time.Hour)

		if err := store.UpsertLongTerm(ctx, "u1", "style", "concise", first); err != nil {
			t.Fatalf("UpsertLongTerm failed: %v", err)
		}
		if err := store.SetSummary(ctx, "u1", "first summary", first); err != nil {
			t.Fatalf("SetSummary failed: %v", err)
		}
		if err := store.SetSummary(ctx, "u1", "second summary", second); err != nil {
			t.Fatalf("SetSummary failed: %v", err)
		}

		profile, err := store.GetProfile(ctx, "u1")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if profile.Summary != "second summary" {
			t.Errorf("Expected summary to be replaced, got %q", profile.Summary)
		}
		if !profile.SummaryUpdatedAt.Equal(second) {
			t.Errorf("Expected updated_at %v, got %v", second, profile.SummaryUpdatedAt)
		}
		if profile.LongTerm["style"] != "concise" {
			t.Error("Expected summary write to keep long term memory")
		}

		if err := store.ClearProfile(ctx, "u1"); err != nil {
			t.Fatalf("ClearProfile failed: %v", err)
		}
		profile, err = store.GetProfile(ctx, "u1")
		if err != nil || profile != nil {
			t.Errorf("Expected nil profile after clear, got %v (err %v)", profile, err)
		}
	})
}

func TestStore_GetProfileMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		profile, err := store.GetProfile(context.Background(), "nobody")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if profile != nil {
			t.Errorf("Expected nil profile, got %+v", profile)
		}
	})
}

func TestStore_SumCostWindow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		dayStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24 * time.Hour)

		events := []struct {
			cost string
			at   time.Time
		}{
			{"0.10", dayStart},                          // inclusive start
			{"0.20", dayStart.Add(13 * time.Hour)},      // inside
			{"0.000123", dayEnd.Add(-time.Nanosecond)},  // last instant of the day
			{"5.00", dayEnd},                            // next day, excluded
			{"7.00", dayStart.Add(-time.Nanosecond)},    // previous day, excluded
		}
		for _, e := range events {
			err := store.AppendUsage(ctx, &UsageEvent{
				UserID:      "u1",
				CostUSD:     decimal.RequireFromString(e.cost),
				MessageType: "chat",
				Model:       "gpt-4o-mini",
				CreatedAt:   e.at,
			})
			if err != nil {
				t.Fatalf("AppendUsage failed: %v", err)
			}
		}

		sum, err := store.SumCost(ctx, "u1", dayStart, dayEnd)
		if err != nil {
			t.Fatalf("SumCost failed: %v", err)
		}
		want := decimal.RequireFromString("0.300123")
		if !sum.Equal(want) {
			t.Errorf("Expected sum %s, got %s", want, sum)
		}

		listed, err := store.ListUsage(ctx, "u1", dayStart, dayEnd)
		if err != nil {
			t.Fatalf("ListUsage failed: %v", err)
		}
		if len(listed) != 3 {
			t.Fatalf("Expected 3 events, got %d", len(listed))
		}
		if !listed[0].CostUSD.Equal(decimal.RequireFromString("0.000123")) {
			t.Errorf("Expected newest event first, got %s", listed[0].CostUSD)
		}

		other, err := store.SumCost(ctx, "u2", dayStart, dayEnd)
		if err != nil {
			t.Fatalf("SumCost failed: %v", err)
		}
		if !other.IsZero() {
			t.Errorf("Expected zero for another user, got %s", other)
		}
	})
}

func TestStore_RejectsInvalidRecords(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		err := store.AppendUsage(ctx, &UsageEvent{UserID: "u1", CostUSD: decimal.NewFromFloat(-0.01)})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument for negative cost, got %v", err)
		}

		err = store.AppendTurn(ctx, &ConversationTurn{Text: "no user"})
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument for missing user, got %v", err)
		}

		var storeErr *Error
		if !errors.As(err, &storeErr) {
			t.Fatalf("Expected *Error, got %T", err)
		}
		if storeErr.Op != "append_turn" {
			t.Errorf("Expected op append_turn, got %s", storeErr.Op)
		}
	})
}

func TestStore_Prune(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		cutoff := now.Add(-30 * 24 * time.Hour)

		for _, at := range []time.Time{cutoff.Add(-time.Hour), cutoff.Add(time.Hour)} {
			store.AppendTurn(ctx, &ConversationTurn{UserID: "u1", Text: "x", CreatedAt: at})
			store.AppendTurn(ctx, &ConversationTurn{UserID: "u2", Text: "y", CreatedAt: at})
			store.AppendUsage(ctx, &UsageEvent{UserID: "u1", CostUSD: decimal.NewFromInt(1), Model: "m", MessageType: "chat", CreatedAt: at})
		}

		turns, err := store.PruneTurns(ctx, cutoff)
		if err != nil {
			t.Fatalf("PruneTurns failed: %v", err)
		}
		if turns != 2 {
			t.Errorf("Expected 2 pruned turns, got %d", turns)
		}

		usage, err := store.PruneUsage(ctx, cutoff)
		if err != nil {
			t.Fatalf("PruneUsage failed: %v", err)
		}
		if usage != 1 {
			t.Errorf("Expected 1 pruned event, got %d", usage)
		}

		deleted, err := store.DeleteUserTurns(ctx, "u1")
		if err != nil {
			t.Fatalf("DeleteUserTurns failed: %v", err)
		}
		if deleted != 1 {
			t.Errorf("Expected 1 deleted turn, got %d", deleted)
		}

		remaining, _ := store.RecentTurns(ctx, "u2", 10)
		if len(remaining) != 1 {
			t.Errorf("Expected other user's turn to survive, got %d", len(remaining))
		}
	})
}

func TestStore_ClosedStore(t *testing.T) {
	store := NewMemoryBackend()
	store.Close()

	if err := store.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Backend: BackendMemory}, false},
		{"sqlite", Config{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "open.db")}}, false},
		{"sqlite without path", Config{Backend: BackendSQLite}, true},
		{"postgres without dsn", Config{Backend: BackendPostgres}, true},
		{"unknown", Config{Backend: "redis"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(tt.cfg)
			if tt.wantErr {
				if err == nil {
					store.Close()
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer store.Close()
			if err := store.Ping(context.Background()); err != nil {
				t.Errorf("Ping failed: %v", err)
			}
		})
	}
}
