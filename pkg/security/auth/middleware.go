package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// APIKeySource defines where to extract API keys from
type APIKeySource struct {
	Name   string // Header name
	Scheme string // "Bearer", etc. (optional)
}

// DefaultSources accepts "Authorization: Bearer <key>" and "X-API-Key".
var DefaultSources = []APIKeySource{
	{Name: "Authorization", Scheme: "Bearer"},
	{Name: "X-API-Key"},
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, status int, message string)

// APIKeyMiddleware is HTTP middleware for API key authentication
type APIKeyMiddleware struct {
	validator Validator
	sources   []APIKeySource
	onError   ErrorWriter
	logger    *slog.Logger
}

// MiddlewareOption configures an APIKeyMiddleware.
type MiddlewareOption func(*APIKeyMiddleware)

// WithSources replaces DefaultSources.
func WithSources(sources ...APIKeySource) MiddlewareOption {
	return func(m *APIKeyMiddleware) { m.sources = sources }
}

// WithErrorWriter sets how 401 responses are rendered.
func WithErrorWriter(fn ErrorWriter) MiddlewareOption {
	return func(m *APIKeyMiddleware) { m.onError = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) MiddlewareOption {
	return func(m *APIKeyMiddleware) { m.logger = logger.With("component", "auth") }
}

// NewAPIKeyMiddleware creates a new API key authentication middleware
func NewAPIKeyMiddleware(validator Validator, opts ...MiddlewareOption) *APIKeyMiddleware {
	m := &APIKeyMiddleware{
		validator: validator,
		sources:   DefaultSources,
		onError: func(w http.ResponseWriter, status int, message string) {
			http.Error(w, message, status)
		},
		logger: slog.Default().With("component", "auth"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle wraps an HTTP handler with API key authentication
func (m *APIKeyMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, ok := m.extractAPIKey(r)
		if !ok {
			m.logger.WarnContext(r.Context(), "missing API key",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="samantha"`)
			m.onError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		keyInfo, err := m.validator.Validate(apiKey)
		if err != nil {
			m.logger.WarnContext(r.Context(), "API key rejected",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="samantha", error="invalid_token"`)
			if errors.Is(err, ErrDisabledKey) {
				m.onError(w, http.StatusUnauthorized, "API key disabled")
				return
			}
			m.onError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		m.logger.DebugContext(r.Context(), "API key authenticated",
			"key_name", keyInfo.Name,
			"path", r.URL.Path,
		)

		ctx := context.WithValue(r.Context(), apiKeyInfoKey, keyInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractAPIKey returns the first key found in the configured sources.
func (m *APIKeyMiddleware) extractAPIKey(r *http.Request) (string, bool) {
	for _, source := range m.sources {
		value := strings.TrimSpace(r.Header.Get(source.Name))
		if value == "" {
			continue
		}
		if source.Scheme == "" {
			return value, true
		}
		scheme, token, found := strings.Cut(value, " ")
		if found && strings.EqualFold(scheme, source.Scheme) && token != "" {
			return strings.TrimSpace(token), true
		}
	}
	return "", false
}

// Context key for API key info
type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const apiKeyInfoKey contextKey = "api_key_info"

// GetAPIKeyInfo retrieves API key info from request context
func GetAPIKeyInfo(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyInfoKey).(*APIKeyInfo)
	return info, ok
}

// AllowsUser reports whether the caller in ctx may act for userID. Requests
// that did not pass through the middleware are allowed.
func AllowsUser(ctx context.Context, userID string) bool {
	info, ok := GetAPIKeyInfo(ctx)
	return !ok || info.AllowsUser(userID)
}
