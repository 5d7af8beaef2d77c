// Package openai implements providers.ChatModel on the OpenAI chat
// completions API using github.com/sashabaranov/go-openai.
//
// # Basic Usage
//
//	client, err := openai.NewClient(cfg.OpenAI)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Complete(ctx, &providers.CompletionRequest{
//	    Model: "gpt-4o-mini",
//	    Messages: []providers.Message{
//	        {Role: providers.RoleUser, Content: "Salut !"},
//	    },
//	})
//
// # Errors and Retries
//
// API failures are translated to the providers error types: 401/403 to
// AuthError, 429 to RateLimitError, deadline overruns to TimeoutError and
// everything else to ProviderError. Rate limits, timeouts and 5xx responses
// are retried up to openai.max_retries times with exponential backoff; a
// "try again in" hint from the API extends the wait.
//
// Any OpenAI-compatible server can be used by setting openai.base_url.
package openai
