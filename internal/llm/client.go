// Package llm wraps the OpenAI chat API behind the one-call interface the
// newsletter generator and scrape extractors use.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ignite/contact-core/internal/config"
)

// ErrEmptyCompletion is returned when the model answers with no content.
var ErrEmptyCompletion = errors.New("model returned empty completion")

// Adapter is the narrow LLM dependency: one prompt in, one text out.
type Adapter interface {
	Send(ctx context.Context, prompt string) (string, error)
}

// Client calls OpenAI chat completions with a per-call timeout.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewClient builds the adapter from config.
func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		api:     openai.NewClient(cfg.APIKey),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Send runs one synchronous completion.
func (c *Client) Send(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
