package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Spandai/samantha-telegram-agent/pkg/composer"
	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
	"github.com/Spandai/samantha-telegram-agent/pkg/memory"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/logging"
)

// DefaultCategory is the add_to_memory category when none is given. Facts in
// it are stored under memory.KeyUserPreference.
const DefaultCategory = "general"

// Deps holds what the tool handlers need.
type Deps struct {
	Composer *composer.Composer

	// DefaultUser is used when a tool call has no user_id.
	DefaultUser string

	// Version is reported to MCP clients.
	Version string
}

// NewMCPServer creates an MCP server exposing the assistant tools.
func NewMCPServer(deps Deps) (*server.MCPServer, error) {
	if deps.Composer == nil {
		return nil, errors.New("tools: composer is required")
	}
	if deps.DefaultUser == "" {
		deps.DefaultUser = "mcp"
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	s := server.NewMCPServer(
		"samantha",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Samantha: conversational memory, web search and spending status for one assistant user."),
		server.WithRecovery(),
	)

	userParam := mcp.WithString("user_id", mcp.Description("User the call applies to (default: "+deps.DefaultUser+")"))

	s.AddTool(
		mcp.NewTool("web_search",
			mcp.WithDescription("Search the web for current information (news, weather, prices, schedules)."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		webSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("add_to_memory",
			mcp.WithDescription("Store an important fact about the user in long-term memory."),
			mcp.WithString("info", mcp.Description("Information to remember"), mcp.Required()),
			mcp.WithString("category", mcp.Description("Category of the information (default: general)")),
			userParam,
		),
		addToMemory(deps),
	)

	s.AddTool(
		mcp.NewTool("get_budget_status",
			mcp.WithDescription("Show the daily and monthly spending status."),
			userParam,
		),
		budgetStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("get_memory_context",
			mcp.WithDescription("Return everything remembered about the user: profile, summary and recent turns."),
			userParam,
		),
		memoryContext(deps),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Send a message to the assistant and return its reply. Subject to the budget."),
			mcp.WithString("message", mcp.Description("Message text"), mcp.Required()),
			mcp.WithBoolean("force_search", mcp.Description("Run a web search even without a trigger phrase")),
			userParam,
		),
		chat(deps),
	)

	return s, nil
}

// ServeStdio serves s over the stdio transport until ctx is done or in is
// closed. Logs must not be written to out.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func userID(deps Deps, req mcp.CallToolRequest) string {
	if u := strings.TrimSpace(req.GetString("user_id", "")); u != "" {
		return u
	}
	return deps.DefaultUser
}

func withUser(ctx context.Context, user string) context.Context {
	return logging.WithChannel(logging.WithUserID(ctx, user), "mcp")
}

func webSearch(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return mcpError("query is required"), nil
		}

		searcher := deps.Composer.Search()
		if searcher == nil || !searcher.Enabled() {
			return mcpError("❌ Recherche web désactivée"), nil
		}

		results, err := searcher.Search(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("❌ Erreur de recherche: %v", err)), nil
		}
		return mcpText(results), nil
	}
}

func addToMemory(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info, err := req.RequireString("info")
		if err != nil || strings.TrimSpace(info) == "" {
			return mcpError("info is required"), nil
		}
		info = strings.TrimSpace(info)

		category := strings.TrimSpace(req.GetString("category", DefaultCategory))
		if category == "" {
			category = DefaultCategory
		}
		key := category
		if category == DefaultCategory {
			key = memory.KeyUserPreference
		}

		user := userID(deps, req)
		if err := deps.Composer.Memory().UpsertLongTerm(withUser(ctx, user), user, key, info); err != nil {
			return mcpError(fmt.Sprintf("❌ Erreur mémoire: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("✅ Ajouté en mémoire: %s (catégorie: %s)", info, category)), nil
	}
}

func budgetStatus(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user := userID(deps, req)
		// A read error still yields a usable, possibly understated status.
		status, _ := deps.Composer.Budget().Status(withUser(ctx, user), user)
		return mcpText(budget.FormatStatus(status)), nil
	}
}

func memoryContext(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		user := userID(deps, req)
		text, _ := deps.Composer.Memory().Context(withUser(ctx, user), user)
		if text == "" {
			return mcpText("Aucune mémoire pour cet utilisateur."), nil
		}
		return mcpText(text), nil
	}
}

func chat(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil || strings.TrimSpace(message) == "" {
			return mcpError("message is required"), nil
		}

		user := userID(deps, req)
		reply, err := deps.Composer.HandleTurn(withUser(ctx, user), composer.TurnRequest{
			UserID:      user,
			Message:     message,
			ForceSearch: req.GetBool("force_search", false),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("❌ Oups ! Erreur temporaire: %v", err)), nil
		}
		if reply.Denied {
			return mcpError(reply.Text), nil
		}
		return mcpText(reply.Text), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
