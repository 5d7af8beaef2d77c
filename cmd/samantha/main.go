// Samantha is a conversational assistant with tiered memory and per-user
// spending limits, served over Telegram, an HTTP API and MCP.
//
// It keeps three tiers of memory per user (recent turns, a rolling summary
// and a key-value profile), enriches prompts with web search results and
// refuses requests that would exceed the daily or monthly budget.
//
// Usage:
//
//	# Start the Telegram bot and HTTP API
//	samantha serve
//
//	# Start with a custom configuration file
//	samantha serve --config /etc/samantha/config.yaml
//
//	# Talk to the assistant from the terminal
//	samantha chat --user alice
//
//	# Expose the assistant tools to an MCP client over stdio
//	samantha mcp
//
//	# Inspect a user's spending and memory
//	samantha budget 123456789
//	samantha memory show 123456789
//
//	# Delete turns and usage events older than the retention window
//	samantha prune
package main

import (
	"os"

	"github.com/Spandai/samantha-telegram-agent/pkg/cli"
)

func main() {
	os.Exit(cli.ExitCode(Execute()))
}
