package openai

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/providers"
)

const providerName = "openai"

// defaultRetryDelay is the base of the exponential retry backoff.
const defaultRetryDelay = 500 * time.Millisecond

// Client implements providers.ChatModel on the OpenAI chat completions API
// and any server compatible with it.
type Client struct {
	client     *goopenai.Client
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. for tests or proxies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryDelay sets the base retry delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger.With("component", "providers.openai") }
}

// NewClient creates a client from the openai config section. An empty
// BaseURL selects the official endpoint.
func NewClient(cfg config.OpenAIConfig, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &providers.ConfigError{Provider: providerName, Field: "api_key", Message: "API key is required"}
	}

	c := &Client{
		timeout:    cfg.Timeout,
		maxRetries: max(cfg.MaxRetries, 0),
		retryDelay: defaultRetryDelay,
		logger:     slog.Default().With("component", "providers.openai"),
	}
	for _, opt := range opts {
		opt(c)
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if c.httpClient != nil {
		apiCfg.HTTPClient = c.httpClient
	}
	c.client = goopenai.NewClientWithConfig(apiCfg)

	return c, nil
}

// Name implements providers.ChatModel.
func (c *Client) Name() string {
	return providerName
}

// Complete sends a chat completion request, retrying rate limits, timeouts
// and server errors with exponential backoff.
func (c *Client) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	apiReq := toChatRequest(req)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := providers.Backoff(attempt, c.retryDelay)
			var rateErr *providers.RateLimitError
			if errors.As(lastErr, &rateErr) && rateErr.RetryAfter > wait {
				wait = rateErr.RetryAfter
			}

			c.logger.DebugContext(ctx, "retrying model call",
				"model", req.Model,
				"attempt", attempt,
				"wait", wait,
				"error", lastErr,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := c.once(ctx, apiReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !providers.IsRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, req goopenai.ChatCompletionRequest) (*providers.CompletionResponse, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return nil, c.translateError(ctx, callCtx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &providers.ProviderError{Provider: providerName, Message: "response has no choices"}
	}
	return fromChatResponse(resp), nil
}

// Ping lists the available models, which costs no tokens.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return c.translateError(ctx, ctx, err)
	}
	return nil
}

// translateError maps go-openai errors onto the provider error types.
func (c *Client) translateError(parent, call context.Context, err error) error {
	if errors.Is(parent.Err(), context.Canceled) {
		return parent.Err()
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &providers.TimeoutError{Provider: providerName, Timeout: c.timeout}
	}

	status, message := 0, err.Error()
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, message = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &providers.AuthError{Provider: providerName, Message: message}
	case status == http.StatusTooManyRequests:
		return &providers.RateLimitError{Provider: providerName, Message: message, RetryAfter: retryAfter(err)}
	default:
		return &providers.ProviderError{Provider: providerName, StatusCode: status, Message: message, Cause: err}
	}
}

// retryAfter extracts the wait suggested in a 429 message, e.g.
// "Please try again in 1.5s."
func retryAfter(err error) time.Duration {
	var apiErr *goopenai.APIError
	if !errors.As(err, &apiErr) {
		return 0
	}
	_, rest, ok := strings.Cut(apiErr.Message, "try again in ")
	if !ok {
		return 0
	}
	token, _, _ := strings.Cut(rest, " ")
	d, parseErr := time.ParseDuration(strings.TrimRight(token, ".,"))
	if parseErr != nil || d < 0 {
		return 0
	}
	return d
}
