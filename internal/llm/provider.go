package llm

import "context"

// Provider defines the interface for chat model providers.
type Provider interface {
	// Chat sends a completion request and returns the response. Calls block
	// until the provider answers; callers impose their own deadlines via ctx.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the name of this provider.
	Name() string
}
