package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
)

const cacheName = "search"

// ErrDisabled is returned by a Manager built with search disabled.
var ErrDisabled = errors.New("web search disabled")

// Backend performs uncached lookups. *DuckDuckGo implements it.
type Backend interface {
	Lookup(ctx context.Context, query string) (*Results, error)
}

// Manager is the search collaborator of the composer: it formats results
// for the prompt, caches them per normalized query and collapses concurrent
// identical queries into one lookup.
type Manager struct {
	backend  Backend
	enabled  bool
	timeout  time.Duration
	triggers []string
	cache    *expirable.LRU[string, string]
	group    singleflight.Group
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics records cache hits, misses and evictions on collector.
func WithMetrics(collector *metrics.Collector) ManagerOption {
	return func(m *Manager) { m.metrics = collector }
}

// WithManagerLogger sets the manager logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger.With("component", "search.manager") }
}

// NewManager creates a manager from the search config section.
func NewManager(backend Backend, cfg config.SearchConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		backend:  backend,
		enabled:  cfg.Enabled && backend != nil,
		timeout:  cfg.Timeout,
		triggers: normalizeTriggers(cfg.Triggers),
		logger:   slog.Default().With("component", "search.manager"),
	}
	for _, opt := range opts {
		opt(m)
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = config.DefaultSearchCacheSize
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = config.DefaultSearchCacheTTL
	}
	m.cache = expirable.NewLRU[string, string](size, func(string, string) {
		m.metrics.RecordCacheEviction(cacheName)
	}, ttl)

	return m
}

// Enabled reports whether searches are performed.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// ShouldSearch reports whether message contains a trigger phrase,
// case-insensitively.
func (m *Manager) ShouldSearch(message string) bool {
	if !m.enabled {
		return false
	}
	lower := strings.ToLower(message)
	for _, t := range m.triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Search returns formatted results for query. Successful results are cached
// for the configured TTL under the lower-cased, trimmed query; failures are
// not cached.
func (m *Manager) Search(ctx context.Context, query string) (string, error) {
	if !m.enabled {
		return "", ErrDisabled
	}

	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return "", errors.New("empty search query")
	}

	if cached, ok := m.cache.Get(key); ok {
		m.metrics.RecordCacheHit(cacheName)
		m.logger.DebugContext(ctx, "using cached results", "query", key)
		return cached, nil
	}
	m.metrics.RecordCacheMiss(cacheName)

	// The shared lookup must not die with the first caller's context.
	v, err, shared := m.group.Do(key, func() (any, error) {
		lookupCtx := context.WithoutCancel(ctx)
		if m.timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(lookupCtx, m.timeout)
			defer cancel()
		}

		res, err := m.backend.Lookup(lookupCtx, query)
		if err != nil {
			return "", err
		}
		formatted := Format(res)
		m.cache.Add(key, formatted)
		m.metrics.UpdateCacheSize(cacheName, m.cache.Len())
		return formatted, nil
	})
	if err != nil {
		m.logger.WarnContext(ctx, "search failed", "query", key, "error", err)
		return "", err
	}
	if shared {
		m.logger.DebugContext(ctx, "search result shared", "query", key)
	}
	return v.(string), nil
}

// Purge empties the cache.
func (m *Manager) Purge() {
	m.cache.Purge()
	m.metrics.UpdateCacheSize(cacheName, 0)
}

func normalizeTriggers(triggers []string) []string {
	if len(triggers) == 0 {
		triggers = config.DefaultSearchTriggers
	}
	out := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
