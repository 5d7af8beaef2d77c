package main

import (
	"github.com/spf13/cobra"

	"github.com/Spandai/samantha-telegram-agent/pkg/cli"
	"github.com/Spandai/samantha-telegram-agent/pkg/tools"
)

var mcpFlags struct {
	user string
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assistant tools over MCP stdio",
	Long: `Serve the assistant tools to an MCP client over stdin and stdout.

Tools: web_search, add_to_memory, budget_status, memory_context and chat.
Calls without a user_id act on the user given by --user. Logs go to stderr.

Example client configuration:
  {"command": "samantha", "args": ["mcp", "--config", "/etc/samantha/config.yaml"]}`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVarP(&mcpFlags.user, "user", "u", "mcp", "user id for calls without user_id")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	s, err := tools.NewMCPServer(tools.Deps{
		Composer:    a.composer,
		DefaultUser: mcpFlags.user,
		Version:     Version,
	})
	if err != nil {
		return cli.NewCommandError("mcp", err)
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a.logger.Info("serving mcp over stdio", "default_user", mcpFlags.user)
	if err := tools.ServeStdio(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return cli.NewCommandError("mcp", err)
	}
	return nil
}
