package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Spandai/samantha-telegram-agent/pkg/cli"
	"github.com/Spandai/samantha-telegram-agent/pkg/config"
	"github.com/Spandai/samantha-telegram-agent/pkg/retention"
	"github.com/Spandai/samantha-telegram-agent/pkg/security/auth"
	"github.com/Spandai/samantha-telegram-agent/pkg/server"
	"github.com/Spandai/samantha-telegram-agent/pkg/telemetry/health"
	"github.com/Spandai/samantha-telegram-agent/pkg/transport/telegram"
)

const healthCheckTimeout = 5 * time.Second

var serveFlags struct {
	listenAddress string
	logLevel      string
	noTelegram    bool
	noWatch       bool
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Telegram bot and the HTTP API",
	Long: `Start the Telegram bot and the HTTP API with the specified configuration.

The bot long-polls Telegram when a token is configured. The HTTP API serves
chat, budget, memory, health and metrics routes when server.enabled is set.
Old turns and usage events are pruned on the retention schedule, and budget
limits and prices are reloaded when the config file changes.

Examples:
  # Start with default config
  samantha serve

  # Start with custom config
  samantha serve --config /etc/samantha/config.yaml

  # Override listen address
  samantha serve --listen 0.0.0.0:8080

  # HTTP API only
  samantha serve --no-telegram

  # Validate config without starting anything
  samantha serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.noTelegram, "no-telegram", false, "do not start the Telegram bot")
	serveCmd.Flags().BoolVar(&serveFlags.noWatch, "no-watch", false, "do not reload the config file on change")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if serveFlags.noTelegram {
		cfg.Telegram.Token = ""
	}

	if !cfg.Server.Enabled && cfg.Telegram.Token == "" {
		return cli.NewConfigError("telegram.token", "nothing to serve: set a bot token or enable the HTTP server")
	}

	out := cmd.OutOrStdout()
	if serveFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	printBanner(out, cfg)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Enabled {
		checker := health.New(healthCheckTimeout)
		checker.RegisterCheck("storage", health.PingCheck(a.store))
		checker.RegisterCheck("model", health.PingCheck(a.model))

		opts := []server.Option{
			server.WithHealth(checker),
			server.WithMetrics(a.metrics, cfg.Telemetry.Metrics.Path),
			server.WithTracer(a.tracer),
			server.WithBuildInfo(server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate}),
			server.WithLogger(a.logger),
		}
		// Keys configured at startup turn authentication on for the life of
		// the process; reloads can rotate them but not switch it off.
		if keys := auth.KeysFromConfig(cfg.Server); len(keys) > 0 {
			a.apiKeys = auth.NewAPIKeyValidator(keys)
			opts = append(opts, server.WithAPIKeys(a.apiKeys))
		} else if !isLoopback(cfg.Server.ListenAddress) {
			a.logger.Warn("HTTP API has no API keys and listens beyond loopback",
				"address", cfg.Server.ListenAddress,
			)
		}

		srv := server.NewServer(cfg.Server, a.composer, opts...)
		g.Go(func() error {
			if err := srv.Start(gctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		fmt.Fprintf(out, "✓ HTTP API listening on %s\n", cfg.Server.ListenAddress)
	}

	if cfg.Telegram.Token != "" {
		bot, err := telegram.New(cfg.Telegram, a.composer,
			telegram.WithMetrics(a.metrics),
			telegram.WithLogger(a.logger),
		)
		if err != nil {
			return cli.NewCommandError("serve", err)
		}
		g.Go(func() error {
			if err := bot.Start(gctx); err != nil {
				return fmt.Errorf("telegram: %w", err)
			}
			return nil
		})
		fmt.Fprintln(out, "✓ Telegram bot polling")
	}

	pruner := retention.NewPruner(a.store, cfg.Retention,
		retention.WithMetrics(a.metrics),
		retention.WithLogger(a.logger),
	)
	if err := pruner.Start(gctx); err != nil {
		return cli.NewConfigError("retention.prune_schedule", err.Error())
	}
	defer pruner.Stop()
	if next := pruner.NextPruning(); next != nil {
		fmt.Fprintf(out, "✓ Retention: %d days, next pruning %s\n", cfg.Retention.Days, next.Format(time.RFC3339))
	}

	if !serveFlags.noWatch && fileExists(cfgFile) {
		watcher, err := config.NewWatcher(cfgFile, 0)
		if err != nil {
			a.logger.Warn("config hot reload disabled", "error", err)
		} else {
			g.Go(func() error {
				if err := watcher.Watch(gctx, a.reload); err != nil {
					a.logger.Warn("config watcher stopped", "error", err)
				}
				return nil
			})
			fmt.Fprintf(out, "✓ Watching %s for budget and pricing changes\n", cfgFile)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return cli.NewCommandError("serve", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "%s %s\n", cfg.Agent.Name, Version)
	fmt.Fprintf(w, "✓ Model: %s (summaries: %s)\n", cfg.Agent.Model, cfg.Agent.SummaryModel)
	fmt.Fprintf(w, "✓ Storage: %s\n", cfg.Storage.Backend)
	fmt.Fprintf(w, "✓ Budget: $%.2f/day, $%.2f/month\n", cfg.Budget.DailyLimit, cfg.Budget.MonthlyLimit)
	if cfg.Search.Enabled {
		fmt.Fprintf(w, "✓ Web search enabled (%d triggers)\n", len(cfg.Search.Triggers))
	}
}

// isLoopback reports whether addr listens on a loopback interface only.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
