// Package ai wraps the external language-model service behind a small
// interface. Everything that consumes it must also work with a nil client.
package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Result is one completion plus its usage accounting.
type Result struct {
	Text             string
	Model            string
	Temperature      float64
	PromptTokens     int
	CompletionTokens int
}

// Client produces completions. Implementations are opaque to callers.
type Client interface {
	Complete(ctx context.Context, system, user string) (Result, error)
	Model() string
}

// OpenAIClient talks to an OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIClient creates a client against baseURL (empty means the public
// OpenAI endpoint).
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: 0.2,
	}
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (Result, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("chat completion returned no choices")
	}
	return Result{
		Text:             resp.Choices[0].Message.Content,
		Model:            c.model,
		Temperature:      float64(c.temperature),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
