// Package server exposes the assistant over HTTP.
//
// The API is a thin JSON layer over a composer.Composer. It is meant for
// local integrations and operations, not as a public endpoint; bind it to
// a loopback address.
//
// # Routes
//
//   - GET /health: liveness probe
//   - GET /ready: readiness probe (storage and model checks)
//   - GET /version: build information
//   - GET /metrics: Prometheus metrics (path configurable)
//   - POST /v1/chat: one conversation turn; 402 when the budget denies it
//   - GET /v1/users/{userID}/budget: budget status with the formatted text
//   - GET /v1/users/{userID}/usage: usage statistics over ?days= (default 7)
//   - GET, DELETE /v1/users/{userID}/memory: memory overview, or forget all
//   - PUT, DELETE /v1/users/{userID}/memory/{key}: set or remove a long-term key
//   - POST /v1/users/{userID}/reset: clear the short-term tier
//   - POST /v1/users/{userID}/consolidate: summarize recent turns now
//
// # Middleware
//
// Requests pass through panic recovery, request ID assignment (X-Request-ID,
// UUID when absent) and access logging, outermost first.
//
// # Shutdown
//
// Start blocks until its context is cancelled and then drains active
// requests for up to server.shutdown_timeout.
package server
