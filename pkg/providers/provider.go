package providers

import "context"

// ChatModel is the model collaborator of the composer. Implementations adapt
// a concrete API (OpenAI, compatible servers) to the provider-agnostic
// request and response types.
//
// Complete must respect context cancellation.
//
// Example usage:
//
//	resp, err := model.Complete(ctx, &CompletionRequest{
//	    Model: "gpt-4o-mini",
//	    Messages: []Message{
//	        {Role: RoleSystem, Content: prompt},
//	        {Role: RoleUser, Content: "Salut !"},
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Content)
type ChatModel interface {
	// Complete sends one chat completion request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name used in logs and metrics.
	Name() string
}

// Pinger is implemented by models that can verify their endpoint is
// reachable without spending tokens.
type Pinger interface {
	Ping(ctx context.Context) error
}
