package llm

import "context"

// Client is the interface a completion provider must implement.
type Client interface {
	// Chat sends the conversation with the given callable tools and
	// returns the model's next message.
	Chat(ctx context.Context, model string, messages []Message, tools []ToolSchema) (*ChatResponse, error)
}
