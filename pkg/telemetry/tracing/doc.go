// Package tracing provides OpenTelemetry tracing for Samantha.
//
// # Overview
//
// A Tracer wraps an OpenTelemetry tracer provider exporting to an OTLP gRPC
// collector. Spans cover the expensive parts of a conversation:
//
//	http.request          (server middleware, W3C trace context extracted)
//	└── composer.turn     (one user message, budget decision, search)
//	    └── model.complete (chat completion with token usage)
//	memory.consolidate    (background summary, linked to the turn context)
//
// # Disabled Tracing
//
// With tracing disabled, and on a nil *Tracer, Start returns non-recording
// spans so callers never check whether tracing is on:
//
//	ctx, span := tracer.Start(ctx, "composer.turn")
//	defer func() { tracing.End(span, err) }()
//
// # Sampling
//
// The sampler is one of "always", "never" or "ratio" and is always wrapped
// in a parent-based sampler, so a sampled inbound traceparent keeps the whole
// trace sampled.
//
// # Usage
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
package tracing
