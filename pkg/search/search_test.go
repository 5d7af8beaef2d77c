package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<div class="result results_links web-result">
  <div class="links_main result__body">
    <h2 class="result__title">
      <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">The Go
        Programming Language</a>
    </h2>
    <a class="result__snippet" href="#">Go is an <b>open source</b> language.</a>
  </div>
</div>
<div class="result results_links web-result">
  <a class="result__a" href="https://pkg.go.dev/">Go Packages</a>
</div>
<div class="result results_links web-result">
  <a class="result__a" href="https://go.dev/doc/">Duplicate</a>
</div>
<div class="result results_links web-result">
  <a class="result__a" href="javascript:alert(1)">Bad</a>
</div>
<div class="result results_links web-result">
  <a class="result__a" href="https://go.dev/blog/">Go Blog</a>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	results, err := parseResults(strings.NewReader(resultsPage), 10)
	if err != nil {
		t.Fatalf("parseResults failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d: %+v", len(results), results)
	}
	want := Result{
		Title:   "The Go Programming Language",
		URL:     "https://go.dev/doc/",
		Snippet: "Go is an open source language.",
	}
	if results[0] != want {
		t.Errorf("Expected %+v, got %+v", want, results[0])
	}
	if results[1].URL != "https://pkg.go.dev/" || results[1].Snippet != "" {
		t.Errorf("Unexpected second result %+v", results[1])
	}
	if results[2].Title != "Go Blog" {
		t.Errorf("Expected Go Blog, got %q", results[2].Title)
	}
}

func TestParseResults_Limit(t *testing.T) {
	results, err := parseResults(strings.NewReader(resultsPage), 2)
	if err != nil {
		t.Fatalf("parseResults failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
}

func TestCleanQuery(t *testing.T) {
	tests := map[string]string{
		"  météo   Paris ?! ": "météo Paris",
		"prix du c++ (2026)":  "prix du c++ 2026",
		"go1.25 release":      "go1.25 release",
		"???":                 "",
	}
	for in, want := range tests {
		if got := CleanQuery(in); got != want {
			t.Errorf("CleanQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormat(t *testing.T) {
	got := Format(&Results{
		Query:   "go",
		Instant: "Go is a language. (Source: Wikipedia)",
		Web: []Result{
			{Title: "Go", URL: "https://go.dev/", Snippet: "Build simple software."},
			{Title: "Tour", URL: "https://go.dev/tour/"},
		},
	})

	want := "📋 RÉPONSE DIRECTE:\nGo is a language. (Source: Wikipedia)\n\n" +
		"🔍 RÉSULTATS WEB:\n" +
		"1. **Go**\n   Build simple software.\n   🔗 https://go.dev/\n\n" +
		"2. **Tour**\n   🔗 https://go.dev/tour/\n"
	if got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}

	if got := Format(&Results{Query: "rien"}); got != "ℹ️ Aucun résultat trouvé pour: rien" {
		t.Errorf("Unexpected empty format %q", got)
	}
}

func newDDGServer(t *testing.T, instant string, htmlStatus int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/instant":
			if got := r.URL.Query().Get("format"); got != "json" {
				t.Errorf("Expected format=json, got %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(instant))
		case "/html":
			if r.Header.Get("User-Agent") == "" {
				t.Error("Expected a User-Agent header")
			}
			w.WriteHeader(htmlStatus)
			_, _ = w.Write([]byte(resultsPage))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDuckDuckGo_Lookup(t *testing.T) {
	srv := newDDGServer(t, `{"Abstract":"Go is a language.","AbstractSource":"Wikipedia"}`, http.StatusOK)
	ddg := NewDuckDuckGo(WithEndpoints(srv.URL+"/instant", srv.URL+"/html"), WithMaxResults(2))

	res, err := ddg.Lookup(context.Background(), "golang ?")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if res.Query != "golang ?" {
		t.Errorf("Expected original query, got %q", res.Query)
	}
	if res.Instant != "Go is a language. (Source: Wikipedia)" {
		t.Errorf("Unexpected instant answer %q", res.Instant)
	}
	if len(res.Web) != 2 {
		t.Errorf("Expected 2 web results, got %d", len(res.Web))
	}
}

func TestDuckDuckGo_InstantVariants(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"Definition":"A gopher.","DefinitionSource":""}`, "A gopher. (Source: Unknown)"},
		{`{"Answer":"42"}`, "42"},
		{`{"Answer":{"widget":true}}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			srv := newDDGServer(t, tt.body, http.StatusOK)
			ddg := NewDuckDuckGo(WithEndpoints(srv.URL+"/instant", srv.URL+"/html"))

			res, err := ddg.Lookup(context.Background(), "q")
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if res.Instant != tt.want {
				t.Errorf("Expected instant %q, got %q", tt.want, res.Instant)
			}
		})
	}
}

func TestDuckDuckGo_PartialFailure(t *testing.T) {
	srv := newDDGServer(t, `{"Answer":"42"}`, http.StatusServiceUnavailable)
	ddg := NewDuckDuckGo(WithEndpoints(srv.URL+"/instant", srv.URL+"/html"))

	res, err := ddg.Lookup(context.Background(), "q")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if res.Instant != "42" {
		t.Errorf("Expected instant 42, got %q", res.Instant)
	}
	if len(res.Web) != 0 {
		t.Errorf("Expected no web results, got %d", len(res.Web))
	}
}

func TestDuckDuckGo_BothFail(t *testing.T) {
	srv := newDDGServer(t, `not json`, http.StatusServiceUnavailable)
	ddg := NewDuckDuckGo(WithEndpoints(srv.URL+"/instant", srv.URL+"/html"))

	if _, err := ddg.Lookup(context.Background(), "q"); err == nil {
		t.Error("Expected error when both lookups fail")
	}
	if _, err := ddg.Lookup(context.Background(), "?!"); err == nil {
		t.Error("Expected error for a query without words")
	}
}

// fakeBackend counts lookups and can block until released.
type fakeBackend struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeBackend) Lookup(ctx context.Context, query string) (*Results, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Results{Query: query, Instant: "answer for " + query}, nil
}

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		Enabled:   true,
		Triggers:  config.DefaultSearchTriggers,
		CacheTTL:  time.Hour,
		CacheSize: 2,
		Timeout:   time.Second,
	}
}

func TestManager_CachesByNormalizedQuery(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, registry)
	backend := &fakeBackend{}
	m := NewManager(backend, searchConfig(), WithMetrics(collector))
	ctx := context.Background()

	first, err := m.Search(ctx, "Météo Lyon")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	second, err := m.Search(ctx, "  météo lyon ")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if first != second {
		t.Errorf("Expected cached result %q, got %q", first, second)
	}
	if n := backend.calls.Load(); n != 1 {
		t.Errorf("Expected 1 backend call, got %d", n)
	}
	if !strings.Contains(first, "📋 RÉPONSE DIRECTE:\nanswer for Météo Lyon") {
		t.Errorf("Unexpected result %q", first)
	}

	count, err := testutil.GatherAndCount(registry, "test_cache_hits_total", "test_cache_misses_total")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 cache series, got %d", count)
	}
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, searchConfig())
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c", "a"} {
		if _, err := m.Search(ctx, q); err != nil {
			t.Fatalf("Search(%q) failed: %v", q, err)
		}
	}
	// Capacity 2: "a" was evicted by "c" and looked up again.
	if n := backend.calls.Load(); n != 4 {
		t.Errorf("Expected 4 backend calls, got %d", n)
	}
}

func TestManager_DoesNotCacheFailures(t *testing.T) {
	backend := &fakeBackend{err: errors.New("down")}
	m := NewManager(backend, searchConfig())

	for range 2 {
		if _, err := m.Search(context.Background(), "q"); err == nil {
			t.Error("Expected error from failing backend")
		}
	}
	if n := backend.calls.Load(); n != 2 {
		t.Errorf("Expected 2 backend calls, got %d", n)
	}
}

func TestManager_CollapsesConcurrentQueries(t *testing.T) {
	backend := &fakeBackend{release: make(chan struct{})}
	m := NewManager(backend, searchConfig())
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = m.Search(ctx, "actualité go")
		}(i)
	}

	// Let every caller reach the shared lookup before releasing it.
	deadline := time.Now().Add(time.Second)
	for backend.calls.Load() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for the shared lookup")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	if n := backend.calls.Load(); n > 2 {
		t.Errorf("Expected at most 2 backend calls, got %d", n)
	}
	for i, r := range results {
		if !strings.Contains(r, "answer for actualité go") {
			t.Errorf("Caller %d got %q", i, r)
		}
	}
}

func TestManager_ShouldSearch(t *testing.T) {
	m := NewManager(&fakeBackend{}, searchConfig())

	tests := []struct {
		message string
		want    bool
	}{
		{"Quelle est la MÉTÉO demain ?", true},
		{"tu peux faire une recherche ?", true},
		{"What's the latest Go release", true},
		{"Quoi de neuf ?", true},
		{"Salut, ça va ?", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := m.ShouldSearch(tt.message); got != tt.want {
			t.Errorf("ShouldSearch(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
}

func TestManager_Disabled(t *testing.T) {
	cfg := searchConfig()
	cfg.Enabled = false
	m := NewManager(&fakeBackend{}, cfg)

	if m.Enabled() {
		t.Error("Expected manager to be disabled")
	}
	if m.ShouldSearch("recherche") {
		t.Error("Expected no search when disabled")
	}
	if _, err := m.Search(context.Background(), "q"); !errors.Is(err, ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}

	if NewManager(nil, searchConfig()).Enabled() {
		t.Error("Expected manager without backend to be disabled")
	}
}

func TestManager_CustomTriggers(t *testing.T) {
	cfg := searchConfig()
	cfg.Triggers = []string{" Bourse ", ""}
	m := NewManager(&fakeBackend{}, cfg)

	if !m.ShouldSearch("la bourse aujourd'hui") {
		t.Error("Expected custom trigger to match")
	}
	if m.ShouldSearch("météo") {
		t.Error("Expected default triggers to be replaced")
	}
	if want := []string{"bourse"}; !reflect.DeepEqual(m.triggers, want) {
		t.Errorf("Expected triggers %v, got %v", want, m.triggers)
	}
}
