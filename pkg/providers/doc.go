// Package providers defines the model collaborator used by the composer.
//
// # Overview
//
// ChatModel is the provider-agnostic interface for one chat completion call.
// Concrete adapters live in subpackages (openai). Around an adapter the
// package offers:
//
//   - Monitored: request validation, Prometheus metrics and health tracking
//     (healthy until three consecutive failures, recovered by one success).
//   - Summarizer: the consolidation call that condenses a transcript into
//     the medium-term memory summary.
//
// # Error Handling
//
// Adapters translate API failures into typed errors:
//
//   - AuthError: credentials rejected (401, 403)
//   - RateLimitError: 429, with an optional retry-after hint
//   - TimeoutError: the call exceeded its deadline
//   - ProviderError: any other failure, with the HTTP status when known
//   - ValidationError: the request was rejected before sending
//   - ConfigError: the adapter cannot be built
//
// IsRetryable tells transient failures from permanent ones and Status maps
// an error to its metrics label.
//
// # Usage
//
//	client, err := openai.NewClient(cfg.OpenAI)
//	if err != nil {
//	    return err
//	}
//	model := providers.Monitor(client, providers.WithMetrics(collector))
//	summarizer := providers.NewSummarizer(model, cfg.Agent.SummaryModel)
package providers
