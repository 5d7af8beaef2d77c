package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/Spandai/samantha-telegram-agent/pkg/cli"
	"github.com/Spandai/samantha-telegram-agent/pkg/composer"
	"github.com/Spandai/samantha-telegram-agent/pkg/limits/budget"
)

var chatFlags struct {
	user        string
	forceSearch bool
	history     string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant from the terminal",
	Long: `Start an interactive conversation with the assistant.

Turns go through the same budget, memory and search pipeline as Telegram
messages and are recorded under the given user id.

Commands inside the chat:
  /search <query>   force a web search for one message
  /budget           show the budget status
  /memory           show the memory context
  /reset            clear the conversation, keep the profile
  /quit             leave

Examples:
  # Chat as the default local user
  samantha chat

  # Continue a Telegram user's conversation
  samantha chat --user 123456789`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&chatFlags.user, "user", "u", "local", "user id the conversation is recorded under")
	chatCmd.Flags().BoolVar(&chatFlags.forceSearch, "search", false, "search the web for every message")
	chatCmd.Flags().StringVar(&chatFlags.history, "history", "", "readline history file")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "vous> ",
		HistoryFile:     chatFlags.history,
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return cli.NewCommandError("chat", err)
	}
	defer rl.Close()

	s := &chatSession{
		app:  a,
		user: chatFlags.user,
		out:  rl.Stdout(),
	}
	fmt.Fprintf(s.out, "%s est prête. /quit pour sortir.\n", cfg.Agent.Name)

	ctx := cmd.Context()
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return cli.NewCommandError("chat", err)
		}

		if !s.handle(ctx, strings.TrimSpace(line)) {
			return nil
		}
	}
}

type chatSession struct {
	app  *app
	user string
	out  io.Writer
}

// handle processes one input line and reports whether the session goes on.
func (s *chatSession) handle(ctx context.Context, line string) bool {
	if line == "" {
		return true
	}

	if !strings.HasPrefix(line, "/") {
		s.turn(ctx, line, chatFlags.forceSearch)
		return true
	}

	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch command {
	case "/quit", "/exit":
		return false
	case "/search":
		if rest == "" {
			fmt.Fprintln(s.out, "usage: /search <query>")
			return true
		}
		s.turn(ctx, rest, true)
	case "/budget":
		status, err := s.app.budget.Status(ctx, s.user)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return true
		}
		fmt.Fprintln(s.out, budget.FormatStatus(status))
	case "/memory":
		text, err := s.app.memory.Context(ctx, s.user)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return true
		}
		if text == "" {
			text = "(no memory)"
		}
		fmt.Fprintln(s.out, text)
	case "/reset":
		n, err := s.app.memory.Reset(ctx, s.user)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return true
		}
		fmt.Fprintf(s.out, "✓ %d turns cleared\n", n)
	default:
		fmt.Fprintln(s.out, "commands: /search <query>, /budget, /memory, /reset, /quit")
	}
	return true
}

func (s *chatSession) turn(ctx context.Context, message string, forceSearch bool) {
	reply, err := s.app.composer.HandleTurn(ctx, composer.TurnRequest{
		UserID:      s.user,
		Message:     message,
		ForceSearch: forceSearch,
	})
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}

	name := strings.ToLower(s.app.cfg.Agent.Name)
	fmt.Fprintf(s.out, "%s> %s\n", name, reply.Text)
}
