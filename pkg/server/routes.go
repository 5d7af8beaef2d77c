package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Spandai/samantha-telegram-agent/pkg/composer"
	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
	"github.com/Spandai/samantha-telegram-agent/pkg/providers"
	"github.com/Spandai/samantha-telegram-agent/pkg/security/auth"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/health"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/logging"
)

const maxRequestBodySize = 1 << 20

// Handler returns the API router.
//
// Routes:
//
//	GET    /health, /ready, /version, <metrics path>
//
// Routes under /v1 require an API key when keys are configured:
//
//	POST   /v1/chat
//	GET    /v1/users/{userID}/budget
//	GET    /v1/users/{userID}/usage?days=7
//	GET    /v1/users/{userID}/memory
//	DELETE /v1/users/{userID}/memory
//	PUT    /v1/users/{userID}/memory/{key}
//	DELETE /v1/users/{userID}/memory/{key}
//	POST   /v1/users/{userID}/reset
//	POST   /v1/users/{userID}/consolidate
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger), s.tracer.HTTPMiddleware, requestID, accessLog(s.logger))

	if s.checker != nil {
		r.Get("/health", s.checker.LivenessHandler())
		r.Get("/ready", s.checker.ReadinessHandler())
	}
	r.Get("/version", health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))
	if s.metrics != nil && s.metricsPath != "" {
		r.Handle(s.metricsPath, s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if s.apiKeys != nil {
			keys := auth.NewAPIKeyMiddleware(s.apiKeys,
				auth.WithErrorWriter(authError),
				auth.WithLogger(s.logger),
			)
			r.Use(keys.Handle)
		}
		r.Post("/chat", s.handleChat)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(userScope)
			r.Get("/budget", s.handleBudget)
			r.Get("/usage", s.handleUsage)
			r.Get("/memory", s.handleMemory)
			r.Delete("/memory", s.handleForget)
			r.Put("/memory/{key}", s.handleSetMemory)
			r.Delete("/memory/{key}", s.handleDeleteMemory)
			r.Post("/reset", s.handleReset)
			r.Post("/consolidate", s.handleConsolidate)
		})
	})

	return r
}

type chatRequest struct {
	UserID      string `json:"user_id"`
	Message     string `json:"message"`
	ForceSearch bool   `json:"force_search,omitempty"`
}

type chatResponse struct {
	Reply        string  `json:"reply"`
	Denied       bool    `json:"denied"`
	Searched     bool    `json:"searched"`
	Warning      string  `json:"warning,omitempty"`
	Model        string  `json:"model,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      string  `json:"cost_usd"`
	DurationMS   float64 `json:"duration_ms"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "user_id and message are required")
		return
	}
	if !auth.AllowsUser(r.Context(), req.UserID) {
		writeForbidden(w)
		return
	}

	ctx := logging.WithUserID(r.Context(), req.UserID)
	reply, err := s.composer.HandleTurn(ctx, composer.TurnRequest{
		UserID:      req.UserID,
		Message:     req.Message,
		ForceSearch: req.ForceSearch,
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.As(err, new(*providers.TimeoutError)) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, providers.Status(err), err.Error())
		return
	}

	resp := chatResponse{
		Reply:      reply.Text,
		Denied:     reply.Denied,
		Searched:   reply.Searched,
		Warning:    reply.Warning,
		Model:      reply.Model,
		CostUSD:    "0",
		DurationMS: float64(reply.Duration.Microseconds()) / 1000,
	}
	if reply.Usage != nil {
		resp.InputTokens = reply.Usage.InputTokens
		resp.OutputTokens = reply.Usage.OutputTokens
		resp.CostUSD = reply.Usage.CostUSD.String()
	}

	code := http.StatusOK
	if reply.Denied {
		code = http.StatusPaymentRequired
	}
	writeJSON(w, code, resp)
}

type windowResponse struct {
	Spent      string    `json:"spent_usd"`
	Limit      string    `json:"limit_usd"`
	Remaining  string    `json:"remaining_usd"`
	Percentage float64   `json:"percentage"`
	ResetAt    time.Time `json:"reset_at"`
}

type budgetResponse struct {
	Status    budget.State   `json:"status"`
	Daily     windowResponse `json:"daily"`
	Monthly   windowResponse `json:"monthly"`
	CheckedAt time.Time      `json:"checked_at"`
	Text      string         `json:"text"`
	Degraded  bool           `json:"degraded,omitempty"`
}

func toWindow(w budget.Window) windowResponse {
	return windowResponse{
		Spent:      w.Spent.StringFixed(4),
		Limit:      w.Limit.StringFixed(2),
		Remaining:  w.Remaining.StringFixed(4),
		Percentage: w.Percentage,
		ResetAt:    w.ResetAt,
	}
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	status, err := s.composer.Budget().Status(r.Context(), userID)
	writeJSON(w, http.StatusOK, budgetResponse{
		Status:    status.State,
		Daily:     toWindow(status.Daily),
		Monthly:   toWindow(status.Monthly),
		CheckedAt: status.CheckedAt,
		Text:      budget.FormatStatus(status),
		Degraded:  err != nil,
	})
}

type usageResponse struct {
	Days              int            `json:"days"`
	TotalCost         string         `json:"total_cost_usd"`
	TotalMessages     int            `json:"total_messages"`
	AvgCostPerMessage string         `json:"avg_cost_per_message_usd"`
	TotalTokens       int            `json:"total_tokens"`
	ByMessageType     map[string]int `json:"by_message_type"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 366 {
			writeError(w, http.StatusBadRequest, "invalid_request_error", "days must be between 1 and 366")
			return
		}
		days = n
	}

	stats, err := s.composer.Budget().UsageStats(r.Context(), userID, days)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_error", "usage ledger unavailable")
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{
		Days:              stats.DaysAnalyzed,
		TotalCost:         stats.TotalCost.StringFixed(4),
		TotalMessages:     stats.TotalMessages,
		AvgCostPerMessage: stats.AvgCostPerMessage.StringFixed(4),
		TotalTokens:       stats.TotalTokens,
		ByMessageType:     stats.ByMessageType,
	})
}

type memoryResponse struct {
	TotalTurns   int64          `json:"total_turns"`
	TotalTokens  int64          `json:"total_tokens"`
	HasSummary   bool           `json:"has_summary"`
	SummaryAge   string         `json:"summary_age,omitempty"`
	LongTerm     map[string]any `json:"long_term"`
	Context      string         `json:"context"`
	ShouldUpdate bool           `json:"should_consolidate"`
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	mem := s.composer.Memory()

	stats, err := mem.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_error", "memory store unavailable")
		return
	}
	longTerm, _ := mem.LongTerm(r.Context(), userID)
	text, _ := mem.Context(r.Context(), userID)

	resp := memoryResponse{
		TotalTurns:   stats.TotalTurns,
		TotalTokens:  stats.TotalTokens,
		HasSummary:   stats.HasSummary,
		LongTerm:     longTerm,
		Context:      text,
		ShouldUpdate: mem.ShouldConsolidate(r.Context(), userID),
	}
	if stats.HasSummary {
		resp.SummaryAge = stats.SummaryAge.Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type setMemoryRequest struct {
	Value any `json:"value"`
}

func (s *Server) handleSetMemory(w http.ResponseWriter, r *http.Request) {
	userID, key := chi.URLParam(r, "userID"), chi.URLParam(r, "key")

	var req setMemoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "value is required; use DELETE to remove a key")
		return
	}

	if err := s.composer.Memory().UpsertLongTerm(r.Context(), userID, key, req.Value); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	userID, key := chi.URLParam(r, "userID"), chi.URLParam(r, "key")

	if err := s.composer.Memory().UpsertLongTerm(r.Context(), userID, key, nil); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	if err := s.composer.Memory().Forget(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	n, err := s.composer.Memory().Reset(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted_turns": n})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	if err := s.composer.Consolidate(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, http.StatusConflict, "consolidation_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// userScope rejects keys that are not allowed for the {userID} in the path.
func userScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.AllowsUser(r.Context(), chi.URLParam(r, "userID")) {
			writeForbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeForbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, "permission_error", "API key is not allowed for this user")
}

func authError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, "authentication_error", message)
}

func writeError(w http.ResponseWriter, code int, errType, message string) {
	var body errorBody
	body.Error.Message = message
	body.Error.Type = errType
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
