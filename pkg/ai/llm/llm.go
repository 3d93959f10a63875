package llm

import (
	"context"
)

// LLM represents a generic large language model interface
type LLM interface {
	// Chat generates a response based on the conversation history
	Chat(ctx context.Context, messages []Message, opts ...Option) (Response, error)
}

// Response contains the model's reply. When the model requests tools,
// Invocations holds one ToolInvocation message per call in the order the
// model emitted them; Message then holds any accompanying text.
type Response struct {
	Message     Message
	Invocations []Message
	Usage       Usage
}

func (r Response) HasToolCalls() bool {
	return len(r.Invocations) > 0
}

// Client represents a configured LLM client
type Client struct {
	llm LLM
}

// NewClient creates a new LLM client
func NewClient(llm LLM) *Client {
	return &Client{llm: llm}
}

// Chat generates a response based on the conversation history
func (c *Client) Chat(ctx context.Context, messages []Message, opts ...Option) (Response, error) {
	return c.llm.Chat(ctx, messages, opts...)
}
