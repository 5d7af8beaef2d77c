// Package logging configures structured logging with secret redaction.
//
// # Overview
//
// The logging package builds a log/slog logger from config.LoggingConfig:
//   - JSON or text output
//   - Redaction of API keys, the Telegram bot token, bearer tokens and
//     database passwords, both by attribute key and by value pattern
//   - Request, user and channel identifiers pulled from the context
//
// Components log through *slog.Logger; Setup installs the configured logger
// as slog.Default so packages that default to slog.Default() inherit it.
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithUserID(ctx, "42")
//	logger.InfoContext(ctx, "turn handled",
//	    "model", "gpt-4o-mini",
//	    "api_key", key, // logged as "sk-p***"
//	)
//
// # Redaction
//
//   - sk-abc123xyz... → sk-***
//   - 123456789:AAE... → ***:***
//   - postgres://bot:secret@db/samantha → postgres://bot:***@db/samantha
//   - any attribute whose key contains token, secret, password, dsn or api_key
package logging
