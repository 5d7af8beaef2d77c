// Package tools exposes the assistant as Model Context Protocol tools:
// web_search, add_to_memory, get_budget_status, get_memory_context and chat.
//
// Tool failures are returned as error results (IsError set) with a
// user-facing message, never as protocol errors.
package tools
