package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
)

// Store is the subset of the storage backend pruning needs.
type Store interface {
	PruneTurns(ctx context.Context, before time.Time) (int64, error)
	PruneUsage(ctx context.Context, before time.Time) (int64, error)
}

// Result reports one pruning run.
type Result struct {
	Cutoff time.Time
	Turns  int64
	Usage  int64
}

// Total returns the number of deleted rows.
func (r Result) Total() int64 {
	return r.Turns + r.Usage
}

// Pruner deletes conversation turns and usage events older than the
// retention window. Memory profiles are never pruned.
type Pruner struct {
	store     Store
	config    config.RetentionConfig
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
	scheduler *Scheduler
}

// Option configures a Pruner.
type Option func(*Pruner)

// WithMetrics records pruned row counts on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(p *Pruner) { p.metrics = collector }
}

// WithLogger sets the pruner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pruner) { p.logger = logger.With("component", "retention") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pruner) { p.now = now }
}

// NewPruner creates a pruner for store.
func NewPruner(store Store, cfg config.RetentionConfig, opts ...Option) *Pruner {
	p := &Pruner{
		store:  store,
		config: cfg,
		logger: slog.Default().With("component", "retention"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Cutoff returns the instant before which rows are deleted, or the zero
// time when retention is disabled.
func (p *Pruner) Cutoff() time.Time {
	if p.config.Days <= 0 {
		return time.Time{}
	}
	return p.now().UTC().AddDate(0, 0, -p.config.Days)
}

// Prune deletes expired turns and, if enabled, expired usage events. Both
// deletions are attempted; the counts of the one that succeeded are kept
// when the other fails.
func (p *Pruner) Prune(ctx context.Context) (Result, error) {
	cutoff := p.Cutoff()
	res := Result{Cutoff: cutoff}
	if cutoff.IsZero() {
		p.logger.DebugContext(ctx, "retention disabled, nothing pruned")
		return res, nil
	}

	var errs []error

	n, err := p.store.PruneTurns(ctx, cutoff)
	if err != nil {
		p.metrics.RecordStoreError("prune_turns")
		errs = append(errs, fmt.Errorf("failed to prune turns: %w", err))
	} else {
		res.Turns = n
		p.metrics.RecordPruned("turns", n)
	}

	if p.config.PruneUsage {
		n, err := p.store.PruneUsage(ctx, cutoff)
		if err != nil {
			p.metrics.RecordStoreError("prune_usage")
			errs = append(errs, fmt.Errorf("failed to prune usage: %w", err))
		} else {
			res.Usage = n
			p.metrics.RecordPruned("usage", n)
		}
	}

	if res.Total() > 0 {
		p.logger.InfoContext(ctx, "pruning completed",
			"cutoff", cutoff,
			"turns_deleted", res.Turns,
			"usage_deleted", res.Usage,
			"retention_days", p.config.Days,
		)
	} else {
		p.logger.DebugContext(ctx, "no records pruned", "retention_days", p.config.Days)
	}

	return res, errors.Join(errs...)
}

// Start starts scheduled pruning.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops scheduled pruning and waits for a running prune.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled run, or nil.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
