package composer

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
	"github.com/Spandai/samantha-telegram-agent/pkg/memory"
	"github.com/Spandai/samantha-telegram-agent/pkg/processing/costs"
	"github.com/Spandai/samantha-telegram-agent/pkg/processing/tokens"
	"github.com/Spandai/samantha-telegram-agent/pkg/providers"
	"github.com/Spandai/samantha-telegram-agent/pkg/storage"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/tracing"
)

const testUser = "42"

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

type chatModel struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []*providers.CompletionRequest
}

func (m *chatModel) Name() string { return "fake" }

func (m *chatModel) Complete(_ context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &providers.CompletionResponse{Model: req.Model, Content: m.reply}, nil
}

func (m *chatModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *chatModel) lastSystem() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1].Messages[0].Content
}

type fakeSearch struct {
	mu      sync.Mutex
	queries []string
	result  string
	err     error
}

func (f *fakeSearch) Enabled() bool { return true }

func (f *fakeSearch) ShouldSearch(message string) bool {
	return strings.Contains(strings.ToLower(message), "météo")
}

func (f *fakeSearch) Search(_ context.Context, query string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.result, f.err
}

func (f *fakeSearch) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeSummarizer struct {
	mu          sync.Mutex
	transcripts []string
	release     chan struct{}
	err         error
}

func (f *fakeSummarizer) Summarize(_ context.Context, transcript string) (*providers.Summary, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, transcript)
	if f.err != nil {
		return nil, f.err
	}
	return &providers.Summary{
		Text:   "L'utilisateur aime le jazz.",
		Model:  "gpt-4o-mini",
		Prompt: "Résume: " + transcript,
	}, nil
}

func (f *fakeSummarizer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transcripts)
}

type harness struct {
	composer   *Composer
	memStore   *storage.MemoryBackend
	ledger     *storage.MemoryBackend
	model      *chatModel
	search     *fakeSearch
	summarizer *fakeSummarizer
	registry   *prometheus.Registry
}

func newHarness(t *testing.T, memStore *storage.MemoryBackend) *harness {
	t.Helper()
	if memStore == nil {
		memStore = storage.NewMemoryBackend()
	}
	ledger := storage.NewMemoryBackend()
	clock := func() time.Time { return testNow }

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, registry)

	mem, err := memory.NewEngine(memStore, tokens.HeuristicCounter{}, memory.DefaultSettings(), memory.WithClock(clock))
	if err != nil {
		t.Fatalf("memory.NewEngine failed: %v", err)
	}

	calc, err := costs.NewCalculator(costs.Pricing{
		costs.DefaultModel: {InputPer1K: decimal.RequireFromString("0.00015"), OutputPer1K: decimal.RequireFromString("0.0006")},
	})
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}

	bud, err := budget.NewEngine(ledger, tokens.HeuristicCounter{}, calc, budget.Limits{
		Daily:            decimal.RequireFromString("1.50"),
		Monthly:          decimal.RequireFromString("40.00"),
		WarningThreshold: 0.75,
		SevereThreshold:  0.90,
	}, budget.WithClock(clock))
	if err != nil {
		t.Fatalf("budget.NewEngine failed: %v", err)
	}

	h := &harness{
		memStore:   memStore,
		ledger:     ledger,
		model:      &chatModel{reply: "Bonjour ! Comment puis-je t'aider ?"},
		search:     &fakeSearch{result: "📋 RÉPONSE DIRECTE:\nEnsoleillé"},
		summarizer: &fakeSummarizer{},
		registry:   registry,
	}

	h.composer, err = New(mem, bud, h.model, Settings{
		Model:                "gpt-4o-mini",
		MaxTokens:            800,
		Temperature:          0.7,
		DefaultEstimate:      decimal.RequireFromString("0.01"),
		ConsolidationTimeout: time.Second,
	},
		WithSearch(h.search),
		WithSummarizer(h.summarizer),
		WithMetrics(collector),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return h
}

func (h *harness) spend(t *testing.T, cost string) {
	t.Helper()
	err := h.ledger.AppendUsage(context.Background(), &storage.UsageEvent{
		UserID:      testUser,
		CostUSD:     decimal.RequireFromString(cost),
		MessageType: MessageTypeChat,
		Model:       "gpt-4o-mini",
		CreatedAt:   testNow.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("AppendUsage failed: %v", err)
	}
}

func (h *harness) usage(t *testing.T) []*storage.UsageEvent {
	t.Helper()
	events, err := h.ledger.ListUsage(context.Background(), testUser, testNow.AddDate(0, -1, 0), testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListUsage failed: %v", err)
	}
	return events
}

func (h *harness) turns(t *testing.T) []*storage.ConversationTurn {
	t.Helper()
	turns, err := h.memStore.RecentTurns(context.Background(), testUser, 100)
	if err != nil {
		t.Fatalf("RecentTurns failed: %v", err)
	}
	return turns
}

func (h *harness) seedTurns(t *testing.T, n int) {
	t.Helper()
	for i := range n {
		if err := h.composer.Memory().RecordTurn(context.Background(), testUser, "message", i%2 == 0); err != nil {
			t.Fatalf("RecordTurn failed: %v", err)
		}
	}
}

func (h *harness) turn(t *testing.T, message string) *Reply {
	t.Helper()
	reply, err := h.composer.HandleTurn(context.Background(), TurnRequest{UserID: testUser, Message: message})
	if err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	return reply
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	if err := h.composer.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

func (h *harness) profile(t *testing.T) *storage.MemoryProfile {
	t.Helper()
	profile, err := h.memStore.GetProfile(context.Background(), testUser)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	return profile
}

// spanAttr returns the value of key among the span attributes.
func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	set := attribute.NewSet(span.Attributes()...)
	return set.Value(key)
}

func TestNew_Validates(t *testing.T) {
	h := newHarness(t, nil)
	mem, bud := h.composer.Memory(), h.composer.Budget()

	tests := []struct {
		name     string
		mem      *memory.Engine
		bud      *budget.Engine
		model    providers.ChatModel
		settings Settings
	}{
		{"nil memory", nil, bud, h.model, Settings{Model: "m"}},
		{"nil budget", mem, nil, h.model, Settings{Model: "m"}},
		{"nil model", mem, bud, nil, Settings{Model: "m"}},
		{"no model name", mem, bud, h.model, Settings{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.mem, tt.bud, tt.model, tt.settings); err == nil {
				t.Error("Expected error")
			}
		})
	}

	c, err := New(mem, bud, h.model, Settings{Model: "m"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.settings.SummaryModel != "m" {
		t.Errorf("Expected summary model to default to m, got %q", c.settings.SummaryModel)
	}
}

func TestHandleTurn_RecordsTurnsAndUsage(t *testing.T) {
	h := newHarness(t, nil)

	reply := h.turn(t, "  Salut Samantha  ")

	if reply.Text != "Bonjour ! Comment puis-je t'aider ?" {
		t.Errorf("Unexpected reply %q", reply.Text)
	}
	if reply.Denied || reply.Searched || reply.Warning != "" {
		t.Errorf("Expected plain reply, got %+v", reply)
	}
	if reply.Usage == nil {
		t.Fatal("Expected usage, got nil")
	}
	if reply.Usage.MessageType != MessageTypeChat {
		t.Errorf("Expected message type %q, got %q", MessageTypeChat, reply.Usage.MessageType)
	}

	turns := h.turns(t)
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[0].Text != "Salut Samantha" || !turns[0].UserAuthored {
		t.Errorf("Expected trimmed user turn first, got %+v", turns[0])
	}
	if turns[1].UserAuthored {
		t.Error("Expected the reply to be recorded as assistant turn")
	}

	events := h.usage(t)
	if len(events) != 1 {
		t.Fatalf("Expected 1 usage event, got %d", len(events))
	}
	if !events[0].CostUSD.IsPositive() {
		t.Errorf("Expected positive cost, got %s", events[0].CostUSD)
	}

	req := h.model.requests[0]
	if req.Model != "gpt-4o-mini" || req.User != testUser {
		t.Errorf("Expected model gpt-4o-mini for user %s, got %s for %s", testUser, req.Model, req.User)
	}
	if req.Messages[1].Content != "Salut Samantha" {
		t.Errorf("Expected user message, got %q", req.Messages[1].Content)
	}
}

func TestHandleTurn_DeniedByBudget(t *testing.T) {
	h := newHarness(t, nil)
	h.spend(t, "1.50")

	reply := h.turn(t, "Salut")

	if !reply.Denied {
		t.Error("Expected turn to be denied")
	}
	if !strings.HasPrefix(reply.Text, "⛔ Budget quotidien atteint ($1.50/$1.50)") {
		t.Errorf("Unexpected denial text %q", reply.Text)
	}
	if n := h.model.calls(); n != 0 {
		t.Errorf("Expected no model call, got %d", n)
	}
	if turns := h.turns(t); len(turns) != 0 {
		t.Errorf("Expected no turns recorded, got %d", len(turns))
	}
	if events := h.usage(t); len(events) != 1 {
		t.Errorf("Expected only the seeded usage event, got %d", len(events))
	}
}

func TestHandleTurn_DeniedJustBelowLimit(t *testing.T) {
	h := newHarness(t, nil)
	h.spend(t, "1.49")

	if reply := h.turn(t, "Salut"); !reply.Denied {
		t.Error("Expected 1.49 + 0.01 to be denied")
	}
}

func TestHandleTurn_ModelFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.model.err = errors.New("upstream unavailable")

	if _, err := h.composer.HandleTurn(context.Background(), TurnRequest{UserID: testUser, Message: "Salut"}); err == nil {
		t.Fatal("Expected error from failing model")
	}
	if turns := h.turns(t); len(turns) != 0 {
		t.Errorf("Expected no turns recorded, got %d", len(turns))
	}
	if events := h.usage(t); len(events) != 0 {
		t.Errorf("Expected no usage recorded, got %d", len(events))
	}

	count, err := testutil.GatherAndCount(h.registry, "test_turn_total")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 turn series, got %d", count)
	}
}

func TestHandleTurn_RejectsEmptyMessage(t *testing.T) {
	h := newHarness(t, nil)

	if _, err := h.composer.HandleTurn(context.Background(), TurnRequest{UserID: testUser, Message: "   "}); err == nil {
		t.Error("Expected error for blank message")
	}
	if _, err := h.composer.HandleTurn(context.Background(), TurnRequest{Message: "Salut"}); err == nil {
		t.Error("Expected error for missing user")
	}
	if n := h.model.calls(); n != 0 {
		t.Errorf("Expected no model call, got %d", n)
	}
}

func TestHandleTurn_AppendsWarning(t *testing.T) {
	h := newHarness(t, nil)
	h.spend(t, "1.20")

	reply := h.turn(t, "Salut")

	if reply.Denied {
		t.Fatal("Expected turn to be allowed")
	}
	if !strings.HasPrefix(reply.Warning, "⚠️ Budget quotidien à 80%") {
		t.Errorf("Unexpected warning %q", reply.Warning)
	}
	if want := "Bonjour ! Comment puis-je t'aider ?\n\n" + reply.Warning; reply.Text != want {
		t.Errorf("Expected %q, got %q", want, reply.Text)
	}
}

func TestHandleTurn_PromptCarriesMemoryAndDirectives(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if err := h.composer.Memory().UpsertLongTerm(ctx, testUser, memory.KeyCustomPrompt, "Parle comme un pirate"); err != nil {
		t.Fatalf("UpsertLongTerm failed: %v", err)
	}
	if err := h.composer.Memory().UpsertLongTerm(ctx, testUser, memory.KeyCommunicationStyle, "décontracté"); err != nil {
		t.Fatalf("UpsertLongTerm failed: %v", err)
	}

	h.turn(t, "Salut")
	system := h.model.lastSystem()

	for _, want := range []string{
		"ADAPTATION : Parle comme un pirate\n\nADAPTATION : Style de communication préféré: décontracté",
		"MÉMOIRES PERTINENTES :\nPROFIL UTILISATEUR :",
	} {
		if !strings.Contains(system, want) {
			t.Errorf("Expected system prompt to contain %q, got:\n%s", want, system)
		}
	}
	if strings.Contains(system, "RÉSULTATS DE RECHERCHE") {
		t.Error("Expected no search block")
	}

	// The first turn is part of the next prompt.
	h.turn(t, "Et maintenant ?")
	if !strings.Contains(h.model.lastSystem(), "Utilisateur: Salut") {
		t.Error("Expected the previous turn in the next prompt")
	}
}

func TestHandleTurn_MemoryOutageFailsOpen(t *testing.T) {
	store := storage.NewMemoryBackend()
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	h := newHarness(t, store)

	reply := h.turn(t, "Salut")

	if reply.Text != "Bonjour ! Comment puis-je t'aider ?" {
		t.Errorf("Unexpected reply %q", reply.Text)
	}
	if strings.Contains(h.model.lastSystem(), "MÉMOIRES PERTINENTES") {
		t.Error("Expected no memory block during an outage")
	}
	if events := h.usage(t); len(events) != 1 {
		t.Errorf("Expected usage to be tracked, got %d events", len(events))
	}
}

func TestHandleTurn_Search(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		force    bool
		searched bool
	}{
		{"keyword", "Quelle est la météo à Lyon ?", false, true},
		{"forced", "Prochain match de l'OL", true, true},
		{"no trigger", "Comment vas-tu ?", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)

			reply, err := h.composer.HandleTurn(context.Background(), TurnRequest{
				UserID:      testUser,
				Message:     tt.message,
				ForceSearch: tt.force,
			})
			if err != nil {
				t.Fatalf("HandleTurn failed: %v", err)
			}

			if reply.Searched != tt.searched {
				t.Errorf("Expected searched=%v, got %v", tt.searched, reply.Searched)
			}
			if !tt.searched {
				if n := h.search.count(); n != 0 {
					t.Errorf("Expected no search, got %d", n)
				}
				return
			}
			if len(h.search.queries) != 1 || h.search.queries[0] != tt.message {
				t.Errorf("Expected one query %q, got %q", tt.message, h.search.queries)
			}
			want := "RÉSULTATS DE RECHERCHE :\n📋 RÉPONSE DIRECTE:\nEnsoleillé"
			if !strings.Contains(h.model.lastSystem(), want) {
				t.Errorf("Expected search results in system prompt, got:\n%s", h.model.lastSystem())
			}
		})
	}
}

func TestHandleTurn_SearchFailureIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.search.err = errors.New("timeout")

	reply := h.turn(t, "la météo demain ?")

	if reply.Searched {
		t.Error("Expected searched=false after a failed search")
	}
	if n := h.search.count(); n != 1 {
		t.Errorf("Expected 1 search attempt, got %d", n)
	}
	if strings.Contains(h.model.lastSystem(), "RÉSULTATS DE RECHERCHE") {
		t.Error("Expected no search block after a failed search")
	}
}

func TestHandleTurn_ConsolidatesInBackground(t *testing.T) {
	h := newHarness(t, nil)
	h.seedTurns(t, 8)

	h.turn(t, "J'adore le jazz")
	h.wait(t)

	if n := h.summarizer.count(); n != 1 {
		t.Fatalf("Expected 1 summary, got %d", n)
	}
	if !strings.Contains(h.summarizer.transcripts[0], "Utilisateur: J'adore le jazz") {
		t.Errorf("Expected transcript to contain the new turn, got:\n%s", h.summarizer.transcripts[0])
	}

	profile := h.profile(t)
	if profile == nil {
		t.Fatal("Expected profile, got nil")
	}
	if profile.Summary != "L'utilisateur aime le jazz." {
		t.Errorf("Unexpected summary %q", profile.Summary)
	}
	if !profile.SummaryUpdatedAt.Equal(testNow) {
		t.Errorf("Expected summary timestamp %v, got %v", testNow, profile.SummaryUpdatedAt)
	}

	var types []string
	for _, ev := range h.usage(t) {
		types = append(types, ev.MessageType)
	}
	slices.Sort(types)
	if want := []string{MessageTypeChat, MessageTypeSummary}; !slices.Equal(types, want) {
		t.Errorf("Expected usage types %v, got %v", want, types)
	}

	count, err := testutil.GatherAndCount(h.registry, "test_memory_consolidations_total")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 consolidation series, got %d", count)
	}
}

func TestHandleTurn_ConsolidationGates(t *testing.T) {
	t.Run("too few turns", func(t *testing.T) {
		h := newHarness(t, nil)
		h.seedTurns(t, 6)

		h.turn(t, "Salut")
		h.wait(t)
		if n := h.summarizer.count(); n != 0 {
			t.Errorf("Expected no summary, got %d", n)
		}
	})

	t.Run("fresh summary", func(t *testing.T) {
		h := newHarness(t, nil)
		h.seedTurns(t, 20)
		if err := h.composer.Memory().Consolidate(context.Background(), testUser, "Résumé récent."); err != nil {
			t.Fatalf("Consolidate failed: %v", err)
		}

		h.turn(t, "Salut")
		h.wait(t)
		if n := h.summarizer.count(); n != 0 {
			t.Errorf("Expected no summary, got %d", n)
		}
	})

	t.Run("stale summary", func(t *testing.T) {
		h := newHarness(t, nil)
		h.seedTurns(t, 20)
		if err := h.memStore.SetSummary(context.Background(), testUser, "Vieux résumé.", testNow.AddDate(0, 0, -8)); err != nil {
			t.Fatalf("SetSummary failed: %v", err)
		}

		h.turn(t, "Salut")
		h.wait(t)
		if n := h.summarizer.count(); n != 1 {
			t.Errorf("Expected 1 summary, got %d", n)
		}
	})
}

func TestHandleTurn_OneConsolidationPerUser(t *testing.T) {
	h := newHarness(t, nil)
	h.summarizer.release = make(chan struct{})
	h.seedTurns(t, 10)

	h.turn(t, "Premier")
	h.turn(t, "Second")

	close(h.summarizer.release)
	h.wait(t)
	if n := h.summarizer.count(); n != 1 {
		t.Errorf("Expected 1 summary, got %d", n)
	}
}

func TestHandleTurn_ConsolidationFailureKeepsReply(t *testing.T) {
	h := newHarness(t, nil)
	h.summarizer.err = errors.New("model overloaded")
	h.seedTurns(t, 10)

	reply := h.turn(t, "Salut")
	h.wait(t)

	if reply.Text != "Bonjour ! Comment puis-je t'aider ?" {
		t.Errorf("Unexpected reply %q", reply.Text)
	}
	if profile := h.profile(t); profile != nil {
		t.Errorf("Expected no profile, got %+v", profile)
	}
	if events := h.usage(t); len(events) != 1 {
		t.Errorf("Expected only the chat usage event, got %d", len(events))
	}
}

func TestConsolidate_OnDemand(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.composer.Consolidate(ctx, testUser); err == nil {
		t.Error("Expected error without turns")
	}

	h.seedTurns(t, 2)
	if err := h.composer.Consolidate(ctx, testUser); err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}

	if got := h.profile(t).Summary; got != "L'utilisateur aime le jazz." {
		t.Errorf("Unexpected summary %q", got)
	}
}

func TestWait_HonorsContext(t *testing.T) {
	h := newHarness(t, nil)
	h.summarizer.release = make(chan struct{})
	defer close(h.summarizer.release)
	h.seedTurns(t, 10)

	h.turn(t, "Salut")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := h.composer.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestHandleTurn_Traced(t *testing.T) {
	h := newHarness(t, nil)

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c, err := New(h.composer.Memory(), h.composer.Budget(), h.model, h.composer.settings,
		WithSearch(h.search),
		WithSummarizer(h.summarizer),
		WithTracer(tracing.NewWithProvider(tp)),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := c.HandleTurn(context.Background(), TurnRequest{UserID: testUser, Message: "Quelle météo demain ?"}); err != nil {
		t.Fatalf("HandleTurn failed: %v", err)
	}
	if err := c.Consolidate(context.Background(), testUser); err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}

	turn := spans[0]
	if turn.Name() != "composer.turn" {
		t.Errorf("Expected span composer.turn, got %s", turn.Name())
	}
	if turn.Status().Code != codes.Ok {
		t.Errorf("Expected Ok status, got %v", turn.Status().Code)
	}
	if searched, _ := spanAttr(turn, tracing.AttrSearched); !searched.AsBool() {
		t.Error("Expected searched attribute to be true")
	}
	cost, ok := spanAttr(turn, tracing.AttrCostUSD)
	if !ok {
		t.Fatal("Expected cost attribute")
	}
	if cost.AsFloat64() <= 0 {
		t.Errorf("Expected positive cost, got %v", cost.AsFloat64())
	}

	consolidation := spans[1]
	if consolidation.Name() != "memory.consolidate" {
		t.Errorf("Expected span memory.consolidate, got %s", consolidation.Name())
	}
	if turns, _ := spanAttr(consolidation, tracing.AttrTurns); turns.AsInt64() != 2 {
		t.Errorf("Expected 2 turns attribute, got %d", turns.AsInt64())
	}
}

func TestHandleTurn_TracedFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.model.err = errors.New("upstream unavailable")

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c, err := New(h.composer.Memory(), h.composer.Budget(), h.model, h.composer.settings,
		WithTracer(tracing.NewWithProvider(tp)),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := c.HandleTurn(context.Background(), TurnRequest{UserID: testUser, Message: "Salut"}); err == nil {
		t.Fatal("Expected error from failing model")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("Expected Error status, got %v", spans[0].Status().Code)
	}
}
