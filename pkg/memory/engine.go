package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Spandai/samantha-telegram-agent/pkg/processing/tokens"
	"github.com/Spandai/samantha-telegram-agent/pkg/storage"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
)

// Long-term keys with a meaning beyond plain profile facts.
const (
	KeyCustomPrompt       = "custom_prompt"
	KeyCommunicationStyle = "communication_style"
	KeyResponseLength     = "response_length"
	KeyUserPreference     = "user_preference"

	// KeyLastUpdated is bookkeeping written by older profiles. It is never
	// rendered.
	KeyLastUpdated = "last_updated"
)

// Stats summarizes what is remembered about a user.
type Stats struct {
	TotalTurns   int64
	TotalTokens  int64
	HasSummary   bool
	HasLongTerm  bool
	SummaryAge   time.Duration
	LongTermKeys int
}

// Engine maintains the three memory tiers of every user: the raw turn log
// (short term), a rolling summary (medium term) and a key-value profile
// (long term).
//
// The Engine keeps no per-user state; the store serializes long-term writes.
// Reads fail open so a store outage degrades replies instead of blocking them.
type Engine struct {
	store    storage.MemoryStore
	counter  tokens.Counter
	settings Settings
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics counts store errors on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = collector }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With("component", "memory.engine") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a memory engine. The counter must be the one shared with
// the budget engine so turn and usage token counts agree; nil selects the
// word heuristic.
func NewEngine(store storage.MemoryStore, counter tokens.Counter, settings Settings, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("memory: store is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("memory: invalid settings: %w", err)
	}
	if counter == nil {
		counter = tokens.HeuristicCounter{}
	}

	e := &Engine{
		store:    store,
		counter:  counter,
		settings: settings,
		logger:   slog.Default().With("component", "memory.engine"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the engine settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// RecordTurn counts the tokens of text and appends it to the user's turn log.
// A failed write is logged and returned; callers in the reply path ignore it.
func (e *Engine) RecordTurn(ctx context.Context, userID, text string, userAuthored bool) error {
	turn := &storage.ConversationTurn{
		UserID:       userID,
		Text:         text,
		UserAuthored: userAuthored,
		TokenCount:   e.counter.Count(text),
		CreatedAt:    e.now().UTC(),
	}

	if err := e.store.AppendTurn(ctx, turn); err != nil {
		e.storeError(ctx, "record_turn", userID, err)
		return fmt.Errorf("failed to record turn: %w", err)
	}

	e.logger.DebugContext(ctx, "turn recorded",
		"user_id", userID,
		"user_authored", userAuthored,
		"tokens", turn.TokenCount,
	)
	return nil
}

// ShortTerm returns the short-term window in chronological order.
func (e *Engine) ShortTerm(ctx context.Context, userID string) ([]*storage.ConversationTurn, error) {
	return e.recent(ctx, userID, e.settings.ShortTermWindow)
}

// SummaryTurns returns the turns a summarizer should condense, oldest first.
func (e *Engine) SummaryTurns(ctx context.Context, userID string) ([]*storage.ConversationTurn, error) {
	return e.recent(ctx, userID, e.settings.SummaryTurns)
}

func (e *Engine) recent(ctx context.Context, userID string, limit int) ([]*storage.ConversationTurn, error) {
	turns, err := e.store.RecentTurns(ctx, userID, limit)
	if err != nil {
		e.storeError(ctx, "recent_turns", userID, err)
		return nil, fmt.Errorf("failed to read recent turns: %w", err)
	}
	return turns, nil
}

// LongTerm returns a copy of the user's long-term profile map. It is empty,
// never nil, when the user has none.
func (e *Engine) LongTerm(ctx context.Context, userID string) (map[string]any, error) {
	profile, err := e.profile(ctx, userID)
	if err != nil {
		return map[string]any{}, err
	}
	if profile == nil || profile.LongTerm == nil {
		return map[string]any{}, nil
	}
	return profile.LongTerm, nil
}

// Context renders every memory tier into one block of text for the system
// prompt. Sections appear in a fixed order (profile, summary, recent turns)
// and empty sections are left out; a user with no memory gets "".
//
// A tier that cannot be read is skipped. The returned error joins the read
// failures, but the text is always usable.
func (e *Engine) Context(ctx context.Context, userID string) (string, error) {
	var errs []error

	profile, err := e.profile(ctx, userID)
	if err != nil {
		errs = append(errs, err)
	}

	turns, err := e.recent(ctx, userID, e.settings.ContextTurns)
	if err != nil {
		errs = append(errs, err)
	}

	var sections []string
	if profile != nil {
		if s := renderProfile(profile.LongTerm); s != "" {
			sections = append(sections, s)
		}
		if profile.Summary != "" {
			sections = append(sections, summaryHeader+"\n"+profile.Summary)
		}
	}
	if len(turns) > 0 {
		sections = append(sections, recentHeader+"\n"+e.Transcript(turns))
	}

	return strings.Join(sections, "\n\n"), errors.Join(errs...)
}

// ShouldConsolidate reports whether the medium-term summary is missing or
// at least ConsolidationInterval old. It returns false when the profile
// cannot be read, so a store outage never starts a summarizer call.
func (e *Engine) ShouldConsolidate(ctx context.Context, userID string) bool {
	profile, err := e.profile(ctx, userID)
	if err != nil {
		return false
	}
	if profile == nil || profile.SummaryUpdatedAt.IsZero() {
		return true
	}
	return e.now().Sub(profile.SummaryUpdatedAt) >= e.settings.ConsolidationInterval
}

// Consolidate replaces the medium-term summary and refreshes its timestamp.
// Turns appended meanwhile are unaffected.
func (e *Engine) Consolidate(ctx context.Context, userID, summary string) error {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return errors.New("memory: empty summary")
	}

	if err := e.store.SetSummary(ctx, userID, summary, e.now().UTC()); err != nil {
		e.storeError(ctx, "set_summary", userID, err)
		return fmt.Errorf("failed to store summary: %w", err)
	}

	e.logger.InfoContext(ctx, "medium-term memory updated", "user_id", userID, "length", len(summary))
	return nil
}

// UpsertLongTerm merges one key into the long-term profile. The store applies
// the merge atomically, so concurrent writes of different keys for the same
// user are all kept. A nil value removes the key.
func (e *Engine) UpsertLongTerm(ctx context.Context, userID, key string, value any) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("memory: empty long-term key")
	}

	if err := e.store.UpsertLongTerm(ctx, userID, key, value, e.now().UTC()); err != nil {
		e.storeError(ctx, "upsert_long_term", userID, err)
		return fmt.Errorf("failed to update long-term memory: %w", err)
	}

	e.logger.InfoContext(ctx, "long-term memory updated", "user_id", userID, "key", key)
	return nil
}

// AdaptiveDirectives projects the known preference keys of the long-term
// profile into prompt instructions, always in the order custom prompt,
// communication style, response length. Other keys are ignored here.
func (e *Engine) AdaptiveDirectives(ctx context.Context, userID string) []string {
	longTerm, err := e.LongTerm(ctx, userID)
	if err != nil {
		return nil
	}

	var directives []string
	if v, ok := textValue(longTerm, KeyCustomPrompt); ok {
		directives = append(directives, v)
	}
	if v, ok := textValue(longTerm, KeyCommunicationStyle); ok {
		directives = append(directives, "Style de communication préféré: "+v)
	}
	if v, ok := textValue(longTerm, KeyResponseLength); ok {
		directives = append(directives, "Longueur de réponse préférée: "+v)
	}
	return directives
}

// Stats reports turn and token totals and which upper tiers exist.
func (e *Engine) Stats(ctx context.Context, userID string) (Stats, error) {
	var errs []error
	var s Stats

	ts, err := e.store.TurnStats(ctx, userID)
	if err != nil {
		e.storeError(ctx, "turn_stats", userID, err)
		errs = append(errs, fmt.Errorf("failed to read turn stats: %w", err))
	} else {
		s.TotalTurns = ts.Count
		s.TotalTokens = ts.TotalTokens
	}

	profile, err := e.profile(ctx, userID)
	if err != nil {
		errs = append(errs, err)
	}
	if profile != nil {
		s.HasSummary = profile.HasSummary()
		s.HasLongTerm = profile.HasLongTerm()
		s.LongTermKeys = len(profile.LongTerm)
		if !profile.SummaryUpdatedAt.IsZero() {
			s.SummaryAge = e.now().Sub(profile.SummaryUpdatedAt)
		}
	}

	return s, errors.Join(errs...)
}

// Reset clears the short-term tier of a user. The summary and long-term
// profile are kept.
func (e *Engine) Reset(ctx context.Context, userID string) (int64, error) {
	n, err := e.store.DeleteUserTurns(ctx, userID)
	if err != nil {
		e.storeError(ctx, "delete_turns", userID, err)
		return 0, fmt.Errorf("failed to reset conversation: %w", err)
	}

	e.logger.InfoContext(ctx, "short-term memory cleared", "user_id", userID, "turns", n)
	return n, nil
}

// Forget removes every memory tier of a user.
func (e *Engine) Forget(ctx context.Context, userID string) error {
	if _, err := e.Reset(ctx, userID); err != nil {
		return err
	}
	if err := e.store.ClearProfile(ctx, userID); err != nil {
		e.storeError(ctx, "clear_profile", userID, err)
		return fmt.Errorf("failed to clear profile: %w", err)
	}

	e.logger.InfoContext(ctx, "memory forgotten", "user_id", userID)
	return nil
}

// Transcript renders turns as "Speaker: text" lines, user turns labelled
// "Utilisateur" and assistant turns with the agent name.
func (e *Engine) Transcript(turns []*storage.ConversationTurn) string {
	return renderTurns(turns, e.settings.AgentName)
}

func (e *Engine) profile(ctx context.Context, userID string) (*storage.MemoryProfile, error) {
	p, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		e.storeError(ctx, "get_profile", userID, err)
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return p, nil
}

func (e *Engine) storeError(ctx context.Context, op, userID string, err error) {
	e.logger.WarnContext(ctx, "memory store operation failed",
		"op", op,
		"user_id", userID,
		"error", err,
	)
	e.metrics.RecordStoreError(op)
}

func textValue(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	return s, s != ""
}
