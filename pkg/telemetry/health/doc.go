// Package health provides liveness and readiness endpoints for Samantha.
//
// # Endpoints
//
//   - /health: Liveness probe, answers as long as the process runs
//   - /ready: Readiness probe, runs every registered component check
//   - /version: Build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("storage", health.PingCheck(store))
//	checker.RegisterCheck("openai", func(ctx context.Context) error {
//	    if cfg.OpenAI.APIKey == "" {
//	        return errors.New("api key not configured")
//	    }
//	    return nil
//	})
//
//	r.Get("/health", checker.LivenessHandler())
//	r.Get("/ready", checker.ReadinessHandler())
//
// Checks run concurrently, each under its own timeout. A check that hangs
// past the timeout is reported unhealthy and /ready answers 503.
package health
