/*
Package cli provides command-line helpers shared by the samantha commands.

Output Formatting:

Read-only commands print either a human-readable rendering or JSON:

	format, err := cli.ParseFormat(outputFlag)
	if err != nil {
		return err
	}
	return cli.Render(os.Stdout, format, budget.FormatStatus(status), status)

Errors:

Commands return ConfigError for unusable configuration and CommandError for
runtime failures; ExitCode maps them to the process exit status.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
