// Package telemetry groups the observability packages of the agent.
//
// # Components
//
//   - logging: structured slog logging with credential redaction and
//     request, user, channel and trace fields taken from the context
//   - metrics: Prometheus collectors for turns, model calls, budget
//     decisions, memory and search
//   - tracing: OpenTelemetry spans for HTTP requests, turns, model calls and
//     consolidations, exported over OTLP/gRPC
//   - health: liveness, readiness and version handlers
//
// # Usage
//
//	logger, _ := logging.Setup(cfg.Telemetry.Logging, nil)
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tracer, _ := tracing.New(cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "composer.turn")
//	defer span.End()
//
// Every collector and tracer method is safe on a nil receiver, so components
// built without observability need no special casing.
package telemetry
