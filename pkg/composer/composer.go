package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
	"github.com/Spandai/samantha-telegram-agent/pkg/memory"
	"github.com/Spandai/samantha-telegram-agent/pkg/prompts"
	"github.com/Spandai/samantha-telegram-agent/pkg/providers"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/logging"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/tracing"
)

// Composer runs one user turn end to end: budget check, memory and search
// context, model call, bookkeeping and background consolidation.
//
// It is safe for concurrent use. Turns of different users never block each
// other; at most one consolidation per user is in flight.
type Composer struct {
	memory     *memory.Engine
	budget     *budget.Engine
	model      providers.ChatModel
	summarizer Summarizer
	search     Searcher
	settings   Settings
	persona    string

	metrics *metrics.Collector
	tracer  *tracing.Tracer
	logger  *slog.Logger

	wg       sync.WaitGroup
	inFlight sync.Map // user id -> struct{}
}

// Option configures a Composer.
type Option func(*Composer)

// WithSearch enables web search through s.
func WithSearch(s Searcher) Option {
	return func(c *Composer) { c.search = s }
}

// WithSummarizer enables background consolidation through s.
func WithSummarizer(s Summarizer) Option {
	return func(c *Composer) { c.summarizer = s }
}

// WithPersona overrides the base system prompt.
func WithPersona(persona string) Option {
	return func(c *Composer) { c.persona = persona }
}

// WithMetrics records turn outcomes and consolidations on collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Composer) { c.metrics = collector }
}

// WithTracer records a span per turn and per consolidation.
func WithTracer(t *tracing.Tracer) Option {
	return func(c *Composer) { c.tracer = t }
}

// WithLogger sets the composer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) { c.logger = logger.With("component", "composer") }
}

// New creates a composer. The memory engine, budget engine and model are
// required; search and consolidation are optional.
func New(mem *memory.Engine, bud *budget.Engine, model providers.ChatModel, settings Settings, opts ...Option) (*Composer, error) {
	if mem == nil {
		return nil, errors.New("composer: memory engine is required")
	}
	if bud == nil {
		return nil, errors.New("composer: budget engine is required")
	}
	if model == nil {
		return nil, errors.New("composer: chat model is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("composer: invalid settings: %w", err)
	}
	if settings.SummaryModel == "" {
		settings.SummaryModel = settings.Model
	}

	c := &Composer{
		memory:   mem,
		budget:   bud,
		model:    model,
		settings: settings,
		persona:  prompts.Persona(mem.Settings().AgentName),
		logger:   slog.Default().With("component", "composer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Memory returns the memory engine.
func (c *Composer) Memory() *memory.Engine { return c.memory }

// Budget returns the budget engine.
func (c *Composer) Budget() *budget.Engine { return c.budget }

// Search returns the search collaborator, or nil.
func (c *Composer) Search() Searcher { return c.search }

// HandleTurn answers one user message.
//
// A budget denial is not an error: the reply carries the reason and
// Denied is set. The only error returned is a failed model call, after
// which nothing is recorded. Memory and ledger write failures after a
// successful call are logged and do not affect the reply.
func (c *Composer) HandleTurn(ctx context.Context, req TurnRequest) (reply *Reply, err error) {
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "composer.turn")
	span.SetAttributes(
		tracing.AttrUserID.String(req.UserID),
		tracing.AttrForceSearch.Bool(req.ForceSearch),
	)
	if channel := logging.GetChannel(ctx); channel != "" {
		span.SetAttributes(tracing.AttrChannel.String(channel))
	}
	defer func() {
		if reply != nil {
			span.SetAttributes(
				tracing.AttrDenied.Bool(reply.Denied),
				tracing.AttrSearched.Bool(reply.Searched),
				tracing.AttrWarned.Bool(reply.Warning != ""),
			)
			if reply.Usage != nil {
				tracing.SetCostAttribute(span, reply.Usage.CostUSD)
			}
		}
		tracing.End(span, err)
	}()

	message := strings.TrimSpace(req.Message)
	if req.UserID == "" || message == "" {
		return nil, errors.New("composer: user id and message are required")
	}

	logger := c.logger.With("user_id", req.UserID)

	decision, err := c.budget.CanProceed(ctx, req.UserID, c.settings.DefaultEstimate)
	if err != nil {
		logger.WarnContext(ctx, "budget check failed, allowing turn", "error", err)
	}
	if !decision.Allowed {
		logger.InfoContext(ctx, "turn denied by budget", "reason", decision.Reason)
		c.metrics.RecordTurn("denied", time.Since(start))
		return &Reply{Text: decision.Reason, Denied: true, Duration: time.Since(start)}, nil
	}

	system, searched := c.systemPrompt(ctx, req.UserID, message, req.ForceSearch)

	resp, err := c.model.Complete(ctx, &providers.CompletionRequest{
		Model: c.settings.Model,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: system},
			{Role: providers.RoleUser, Content: message},
		},
		Temperature: c.settings.Temperature,
		MaxTokens:   c.settings.MaxTokens,
		User:        req.UserID,
	})
	if err != nil {
		logger.ErrorContext(ctx, "model call failed", "error", err)
		c.metrics.RecordTurn("error", time.Since(start))
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}
	answer := strings.TrimSpace(resp.Content)

	// The reply exists now; bookkeeping failures are logged by the engines.
	_ = c.memory.RecordTurn(ctx, req.UserID, message, true)
	_ = c.memory.RecordTurn(ctx, req.UserID, answer, false)
	usage, _ := c.budget.TrackUsage(ctx, req.UserID, system+"\n"+message, answer, MessageTypeChat, c.settings.Model)

	reply = &Reply{
		Text:     answer,
		Searched: searched,
		Usage:    usage,
		Model:    c.settings.Model,
	}
	if warning, ok := c.budget.WarningMessage(ctx, req.UserID); ok {
		reply.Warning = warning
		reply.Text = answer + "\n\n" + warning
	}

	c.maybeConsolidate(ctx, req.UserID)

	reply.Duration = time.Since(start)
	c.metrics.RecordTurn("replied", reply.Duration)
	logger.DebugContext(ctx, "turn handled",
		"searched", searched,
		"duration", reply.Duration,
	)
	return reply, nil
}

// systemPrompt gathers the memory context, the adaptive directives and, if
// warranted, search results in parallel. Every part fails open.
func (c *Composer) systemPrompt(ctx context.Context, userID, message string, force bool) (string, bool) {
	var (
		memoryText string
		directives []string
		searchText string
	)

	reason := c.searchReason(message, force)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := c.memory.Context(gctx, userID)
		if err != nil {
			c.logger.WarnContext(gctx, "memory context incomplete", "user_id", userID, "error", err)
		}
		memoryText = text
		return nil
	})
	g.Go(func() error {
		directives = c.memory.AdaptiveDirectives(gctx, userID)
		return nil
	})
	if reason != "" {
		c.metrics.RecordSearchTriggered(reason)
		g.Go(func() error {
			text, err := c.search.Search(gctx, message)
			if err != nil {
				c.logger.WarnContext(gctx, "search failed, answering without results", "user_id", userID, "error", err)
				return nil
			}
			searchText = text
			return nil
		})
	}
	_ = g.Wait()

	prompt := prompts.System{
		Base:       c.persona,
		Directives: directives,
		Memory:     memoryText,
		Search:     searchText,
	}
	return prompt.String(), searchText != ""
}

func (c *Composer) searchReason(message string, force bool) string {
	if c.search == nil || !c.search.Enabled() {
		return ""
	}
	switch {
	case force:
		return "forced"
	case c.search.ShouldSearch(message):
		return "keyword"
	default:
		return ""
	}
}

// maybeConsolidate starts a background consolidation when the user has
// enough short-term history and the summary is missing or stale.
func (c *Composer) maybeConsolidate(ctx context.Context, userID string) {
	if c.summarizer == nil {
		return
	}

	turns, err := c.memory.ShortTerm(ctx, userID)
	if err != nil || len(turns) < c.memory.Settings().MinTurnsForConsolidation {
		return
	}
	if !c.memory.ShouldConsolidate(ctx, userID) {
		return
	}

	if _, busy := c.inFlight.LoadOrStore(userID, struct{}{}); busy {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.inFlight.Delete(userID)

		bg := context.WithoutCancel(ctx)
		if c.settings.ConsolidationTimeout > 0 {
			var cancel context.CancelFunc
			bg, cancel = context.WithTimeout(bg, c.settings.ConsolidationTimeout)
			defer cancel()
		}
		_ = c.consolidate(bg, userID)
	}()
}

// Consolidate summarizes the user's recent turns now, regardless of the
// summary age.
func (c *Composer) Consolidate(ctx context.Context, userID string) error {
	if c.summarizer == nil {
		return errors.New("composer: no summarizer configured")
	}
	if _, busy := c.inFlight.LoadOrStore(userID, struct{}{}); busy {
		return errors.New("composer: consolidation already in progress")
	}
	defer c.inFlight.Delete(userID)

	return c.consolidate(ctx, userID)
}

func (c *Composer) consolidate(ctx context.Context, userID string) (err error) {
	start := time.Now()
	logger := c.logger.With("user_id", userID)

	ctx, span := c.tracer.Start(ctx, "memory.consolidate")
	span.SetAttributes(tracing.AttrUserID.String(userID))
	defer func() { tracing.End(span, err) }()

	turns, err := c.memory.SummaryTurns(ctx, userID)
	if err != nil {
		c.metrics.RecordConsolidation("store_error", time.Since(start))
		return err
	}
	if len(turns) == 0 {
		c.metrics.RecordConsolidation("skipped", time.Since(start))
		return errors.New("composer: nothing to consolidate")
	}

	span.SetAttributes(tracing.AttrTurns.Int(len(turns)))

	summary, err := c.summarizer.Summarize(ctx, c.memory.Transcript(turns))
	if err != nil {
		logger.WarnContext(ctx, "consolidation failed", "error", err)
		c.metrics.RecordConsolidation("summarizer_error", time.Since(start))
		return err
	}

	model := summary.Model
	if model == "" {
		model = c.settings.SummaryModel
	}
	_, _ = c.budget.TrackUsage(ctx, userID, summary.Prompt, summary.Text, MessageTypeSummary, model)

	if err := c.memory.Consolidate(ctx, userID, summary.Text); err != nil {
		c.metrics.RecordConsolidation("store_error", time.Since(start))
		return err
	}

	c.metrics.RecordConsolidation("success", time.Since(start))
	logger.InfoContext(ctx, "memory consolidated", "turns", len(turns), "duration", time.Since(start))
	return nil
}

// Wait blocks until background consolidations finish or ctx is done.
func (c *Composer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
