package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Spandai/samantha-telegram-agent/pkg/composer"
	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
	"github.com/Spandai/samantha-telegram-agent/pkg/memory"
	"github.com/Spandai/samantha-telegram-agent/pkg/processing/costs"
	"github.com/Spandai/samantha-telegram-agent/pkg/processing/tokens"
	"github.com/Spandai/samantha-telegram-agent/pkg/providers"
	"github.com/Spandai/samantha-telegram-agent/pkg/security/auth"
	"github.com/Spandai/samantha-telegram-agent/pkg/storage"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/health"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/tracing"
)

type echoModel struct {
	err   error
	panic bool
}

func (echoModel) Name() string { return "echo" }

func (m echoModel) Complete(_ context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if m.panic {
		panic("boom")
	}
	if m.err != nil {
		return nil, m.err
	}
	return &providers.CompletionResponse{Model: req.Model, Content: "écho: " + req.Messages[len(req.Messages)-1].Content}, nil
}

func newTestServer(t *testing.T, model providers.ChatModel) (*Server, *storage.MemoryBackend) {
	t.Helper()
	store := storage.NewMemoryBackend()

	mem, err := memory.NewEngine(store, tokens.HeuristicCounter{}, memory.DefaultSettings())
	if err != nil {
		t.Fatalf("memory.NewEngine failed: %v", err)
	}

	calc, err := costs.NewCalculator(costs.Pricing{
		costs.DefaultModel: {InputPer1K: decimal.RequireFromString("0.00015"), OutputPer1K: decimal.RequireFromString("0.0006")},
	})
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}

	bud, err := budget.NewEngine(store, tokens.HeuristicCounter{}, calc, budget.Limits{
		Daily:            decimal.RequireFromString("1.50"),
		Monthly:          decimal.RequireFromString("40.00"),
		WarningThreshold: 0.75,
		SevereThreshold:  0.90,
	})
	if err != nil {
		t.Fatalf("budget.NewEngine failed: %v", err)
	}

	comp, err := composer.New(mem, bud, model, composer.Settings{
		Model:           "gpt-4o-mini",
		DefaultEstimate: decimal.RequireFromString("0.01"),
	})
	if err != nil {
		t.Fatalf("composer.New failed: %v", err)
	}

	checker := health.New(time.Second)
	checker.RegisterCheck("storage", health.PingCheck(store))

	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, prometheus.NewRegistry())

	srv := NewServer(config.ServerConfig{ListenAddress: "127.0.0.1:0"}, comp,
		WithHealth(checker),
		WithMetrics(collector, "/metrics"),
		WithBuildInfo(BuildInfo{Version: "1.2.3"}),
	)
	return srv, store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// expectStatus stops the test when the response has an unexpected status.
func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestChat(t *testing.T) {
	srv, store := newTestServer(t, echoModel{})
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/v1/chat", `{"user_id":"7","message":"Salut"}`)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("Expected a request ID header")
	}

	var resp chatResponse
	decode(t, rec, &resp)
	if resp.Reply != "écho: Salut" {
		t.Errorf("Expected reply %q, got %q", "écho: Salut", resp.Reply)
	}
	if resp.Denied {
		t.Error("Expected turn to be allowed")
	}
	if resp.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %q", resp.Model)
	}
	if resp.InputTokens <= 0 {
		t.Errorf("Expected input tokens, got %d", resp.InputTokens)
	}

	stats, err := store.TurnStats(context.Background(), "7")
	if err != nil {
		t.Fatalf("TurnStats failed: %v", err)
	}
	if stats.Count != 2 {
		t.Errorf("Expected 2 turns, got %d", stats.Count)
	}
}

func TestChat_KeepsClientRequestID(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"user_id":"7","message":"Salut"}`))
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("Expected request ID req-123, got %q", got)
	}
}

func TestChat_ContinuesTrace(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{})

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	WithTracer(tracing.NewWithProvider(tp))(srv)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"user_id":"7","message":"Salut"}`))
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get(tracing.TraceIDHeader); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("Expected the caller's trace ID, got %q", got)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "http.request" {
		t.Errorf("Expected span http.request, got %s", spans[0].Name())
	}
}

func TestChat_Validation(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{})
	h := srv.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"user_id":`},
		{"missing user", `{"message":"Salut"}`},
		{"blank message", `{"user_id":"7","message":"  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/chat", tt.body)
			expectStatus(t, rec, http.StatusBadRequest)
			if !strings.Contains(rec.Body.String(), "invalid_request_error") {
				t.Errorf("Expected invalid_request_error, got %s", rec.Body.String())
			}
		})
	}
}

func TestChat_Denied(t *testing.T) {
	srv, store := newTestServer(t, echoModel{})
	err := store.AppendUsage(context.Background(), &storage.UsageEvent{
		UserID:      "7",
		CostUSD:     decimal.RequireFromString("2"),
		MessageType: "chat",
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendUsage failed: %v", err)
	}

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/chat", `{"user_id":"7","message":"Salut"}`)
	expectStatus(t, rec, http.StatusPaymentRequired)

	var resp chatResponse
	decode(t, rec, &resp)
	if !resp.Denied {
		t.Error("Expected denied=true")
	}
	if !strings.Contains(resp.Reply, "Budget quotidien atteint") {
		t.Errorf("Unexpected denial reply %q", resp.Reply)
	}
}

func TestChat_ModelErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"provider", &providers.ProviderError{Provider: "openai", StatusCode: 500, Message: "oops"}, http.StatusBadGateway},
		{"timeout", &providers.TimeoutError{Provider: "openai", Timeout: time.Second}, http.StatusGatewayTimeout},
		{"plain", errors.New("down"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, echoModel{err: tt.err})
			rec := do(t, srv.Handler(), http.MethodPost, "/v1/chat", `{"user_id":"7","message":"Salut"}`)
			expectStatus(t, rec, tt.status)
		})
	}
}

func TestRecoversFromPanic(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{panic: true})

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/chat", `{"user_id":"7","message":"Salut"}`)
	expectStatus(t, rec, http.StatusInternalServerError)
	if !strings.Contains(rec.Body.String(), "server_error") {
		t.Errorf("Expected server_error, got %s", rec.Body.String())
	}
}

func TestBudgetAndUsage(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{})
	h := srv.Handler()
	do(t, h, http.MethodPost, "/v1/chat", `{"user_id":"7","message":"Salut"}`)

	rec := do(t, h, http.MethodGet, "/v1/users/7/budget", "")
	expectStatus(t, rec, http.StatusOK)
	var b budgetResponse
	decode(t, rec, &b)
	if b.Status != budget.StateOK {
		t.Errorf("Expected state %s, got %s", budget.StateOK, b.Status)
	}
	if b.Daily.Limit != "1.50" {
		t.Errorf("Expected daily limit 1.50, got %q", b.Daily.Limit)
	}
	if !strings.Contains(b.Text, "BUDGET") {
		t.Errorf("Expected formatted status, got %q", b.Text)
	}

	rec = do(t, h, http.MethodGet, "/v1/users/7/usage?days=30", "")
	expectStatus(t, rec, http.StatusOK)
	var u usageResponse
	decode(t, rec, &u)
	if u.Days != 30 || u.TotalMessages != 1 {
		t.Errorf("Expected 1 message over 30 days, got %d over %d", u.TotalMessages, u.Days)
	}
	if u.ByMessageType["chat"] != 1 {
		t.Errorf("Expected 1 chat event, got %v", u.ByMessageType)
	}

	rec = do(t, h, http.MethodGet, "/v1/users/7/usage?days=zero", "")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestMemoryRoutes(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{})
	h := srv.Handler()
	do(t, h, http.MethodPost, "/v1/chat", `{"user_id":"7","message":"Salut"}`)

	rec := do(t, h, http.MethodPut, "/v1/users/7/memory/communication_style", `{"value":"formel"}`)
	expectStatus(t, rec, http.StatusNoContent)

	rec = do(t, h, http.MethodGet, "/v1/users/7/memory", "")
	expectStatus(t, rec, http.StatusOK)
	var m memoryResponse
	decode(t, rec, &m)
	if m.TotalTurns != 2 {
		t.Errorf("Expected 2 turns, got %d", m.TotalTurns)
	}
	if m.LongTerm["communication_style"] != "formel" {
		t.Errorf("Expected communication_style=formel, got %v", m.LongTerm)
	}
	if !strings.Contains(m.Context, "- communication_style: formel") {
		t.Errorf("Expected the profile in the context, got %q", m.Context)
	}
	if !m.ShouldUpdate {
		t.Error("Expected should_update without a summary")
	}

	rec = do(t, h, http.MethodPut, "/v1/users/7/memory/communication_style", `{"value":null}`)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, h, http.MethodDelete, "/v1/users/7/memory/communication_style", "")
	expectStatus(t, rec, http.StatusNoContent)

	rec = do(t, h, http.MethodPost, "/v1/users/7/reset", "")
	expectStatus(t, rec, http.StatusOK)
	var reset map[string]int
	decode(t, rec, &reset)
	if len(reset) != 1 || reset["deleted_turns"] != 2 {
		t.Errorf(`Expected {"deleted_turns":2}, got %s`, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/v1/users/7/memory", "")
	m = memoryResponse{}
	decode(t, rec, &m)
	if m.TotalTurns != 0 || len(m.LongTerm) != 0 {
		t.Errorf("Expected empty memory, got %+v", m)
	}

	rec = do(t, h, http.MethodDelete, "/v1/users/7/memory", "")
	expectStatus(t, rec, http.StatusNoContent)
}

func TestAPIKeys(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{})
	WithAPIKeys(auth.NewAPIKeyValidator([]*auth.APIKeyInfo{
		{Name: "web", Key: "sk-web-0123456789", Enabled: true},
		{Name: "shortcuts", Key: "sk-ios-0123456789", Enabled: true, Users: []string{"7"}},
	}))(srv)
	h := srv.Handler()

	tests := []struct {
		name     string
		method   string
		path     string
		key      string
		body     string
		status   int
		contains string
	}{
		{"missing key", http.MethodGet, "/v1/users/7/budget", "", "", http.StatusUnauthorized, "authentication_error"},
		{"wrong key", http.MethodGet, "/v1/users/7/budget", "sk-wrong", "", http.StatusUnauthorized, ""},
		{"unscoped key", http.MethodGet, "/v1/users/8/budget", "sk-web-0123456789", "", http.StatusOK, ""},
		{"scoped key own user", http.MethodGet, "/v1/users/7/memory", "sk-ios-0123456789", "", http.StatusOK, ""},
		{"scoped key other user", http.MethodGet, "/v1/users/8/memory", "sk-ios-0123456789", "", http.StatusForbidden, "permission_error"},
		{"scoped chat other user", http.MethodPost, "/v1/chat", "sk-ios-0123456789", `{"user_id":"8","message":"Salut"}`, http.StatusForbidden, ""},
		{"scoped chat own user", http.MethodPost, "/v1/chat", "sk-ios-0123456789", `{"user_id":"7","message":"Salut"}`, http.StatusOK, ""},
		// Operational routes stay open.
		{"health", http.MethodGet, "/health", "", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.key != "" {
				req.Header.Set("Authorization", "Bearer "+tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			expectStatus(t, rec, tt.status)
			if tt.contains != "" && !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("Expected body to contain %q, got %s", tt.contains, rec.Body.String())
			}
		})
	}
}

func TestConsolidate_WithoutSummarizer(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{})

	rec := do(t, srv.Handler(), http.MethodPost, "/v1/users/7/consolidate", "")
	expectStatus(t, rec, http.StatusConflict)
}

func TestOperationalRoutes(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{})
	h := srv.Handler()

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		expectStatus(t, do(t, h, http.MethodGet, path, ""), http.StatusOK)
	}

	rec := do(t, h, http.MethodGet, "/version", "")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"version":"1.2.3"`) {
		t.Errorf("Expected version 1.2.3, got %s", rec.Body.String())
	}
}

func TestStartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, echoModel{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	if srv.IsRunning() {
		t.Error("Expected server to be stopped")
	}
}
