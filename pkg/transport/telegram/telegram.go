package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spandai/samantha-telegram-agent/pkg/composer"
	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/limits/ratelimit"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/logging"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/metrics"
)

const channelName = "telegram"

// Bot serves a Composer over the Telegram Bot API using long polling.
type Bot struct {
	config   config.TelegramConfig
	composer *composer.Composer
	pacer    *ratelimit.Pacer
	factory  BotFactory
	api      BotAPI
	metrics  *metrics.Collector
	logger   *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures a Bot.
type Option func(*Bot)

// WithBotAPI uses api instead of authenticating with the token.
func WithBotAPI(api BotAPI) Option {
	return func(b *Bot) { b.api = api }
}

// WithBotFactory replaces DefaultBotFactory.
func WithBotFactory(factory BotFactory) Option {
	return func(b *Bot) { b.factory = factory }
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector *metrics.Collector) Option {
	return func(b *Bot) { b.metrics = collector }
}

// WithLogger sets the bot logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) { b.logger = logger.With("component", "telegram") }
}

// New creates a bot for comp. The token is required unless WithBotAPI is
// given.
func New(cfg config.TelegramConfig, comp *composer.Composer, opts ...Option) (*Bot, error) {
	if comp == nil {
		return nil, errors.New("composer is required")
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = config.DefaultMaxMessageLength
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = config.DefaultPollTimeout
	}

	b := &Bot{
		config:   cfg,
		composer: comp,
		pacer:    ratelimit.NewPacer(ratelimit.Config{Interval: cfg.RateInterval}),
		factory:  DefaultBotFactory,
		logger:   slog.Default().With("component", "telegram"),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.api == nil && cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	return b, nil
}

// Start polls for updates until ctx is done. Messages are handled
// concurrently; Start returns once every in-flight message is answered.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("telegram bot is already running")
	}
	b.running = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	if b.api == nil {
		api, err := b.factory(b.config.Token, b.config.Debug)
		if err != nil {
			return fmt.Errorf("failed to create telegram bot: %w", err)
		}
		b.api = api
	}

	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commandMenu...)); err != nil {
		b.logger.Warn("failed to register bot commands", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram polling started", "bot", b.api.Self().UserName)

	// In-flight replies outlive ctx so a shutdown does not cut answers short.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.logger.Info("telegram polling stopped")
			return nil

		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleMessage(handlerCtx, msg)
			}(update.Message)
		}
	}
}

// IsRunning reports whether Start is polling.
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	ctx = logging.WithChannel(ctx, channelName)
	ctx = logging.WithUserID(ctx, userID)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg.Chat.ID, userID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	b.converse(ctx, msg.Chat.ID, userID, text, false)
}

// converse runs one paced turn through the composer and sends the reply.
func (b *Bot) converse(ctx context.Context, chatID int64, userID, text string, forceSearch bool) {
	if !b.admit(ctx, userID) {
		b.reply(ctx, chatID, b.slowDownText())
		return
	}

	if forceSearch {
		b.reply(ctx, chatID, "🔍 Recherche en cours...")
	} else {
		b.typing(ctx, chatID)
	}

	reply, err := b.composer.HandleTurn(ctx, composer.TurnRequest{
		UserID:      userID,
		Message:     text,
		ForceSearch: forceSearch,
	})
	if err != nil {
		b.logger.ErrorContext(ctx, "turn failed", "error", err, "force_search", forceSearch)
		if forceSearch {
			b.reply(ctx, chatID, fmt.Sprintf("❌ Erreur de recherche: %v", err))
		} else {
			b.reply(ctx, chatID, fmt.Sprintf("❌ Oups ! Erreur temporaire: %v\n\nRéessayez dans un moment.", err))
		}
		return
	}

	b.reply(ctx, chatID, reply.Text)
}

func (b *Bot) admit(ctx context.Context, userID string) bool {
	res := b.pacer.Check(userID)
	if !res.Allowed {
		b.metrics.RecordPaced(channelName)
		b.logger.DebugContext(ctx, "message paced", "retry_after", res.RetryAfter)
	}
	return res.Allowed
}

func (b *Bot) slowDownText() string {
	secs := int(b.pacer.Interval().Round(time.Second) / time.Second)
	unit := "secondes"
	if secs <= 1 {
		secs, unit = 1, "seconde"
	}
	return fmt.Sprintf("⏳ Doucement ! Attendez %d %s entre les messages.", secs, unit)
}

// reply sends text split to the message length limit. Replies are sent as
// Markdown and resent as plain text when Telegram rejects the markup.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	for _, chunk := range splitMessage(text, b.config.MaxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.api.Send(msg); err == nil {
			continue
		}

		msg.ParseMode = ""
		if _, err := b.api.Send(msg); err != nil {
			b.logger.ErrorContext(ctx, "failed to send message", "chat_id", chatID, "error", err)
			return
		}
	}
}

func (b *Bot) typing(ctx context.Context, chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.DebugContext(ctx, "failed to send chat action", "error", err)
	}
}
