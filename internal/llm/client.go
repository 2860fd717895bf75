// Package llm provides a small assistant runtime over a chat-completion
// provider: fixed role and instructions, optional datetime and chat history
// context, and a tool-call loop.
package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// ChatClient is the chat-completion capability an Assistant needs.
// *openai.Client implements it.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Ensure the OpenAI client implements ChatClient.
var _ ChatClient = (*openai.Client)(nil)

// NewOpenAIClient creates an OpenAI client for the given key.
// An empty baseURL uses the public API endpoint.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
