// Package llm wraps the language model provider used for explanations and
// embeddings.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	openai "github.com/sashabaranov/go-openai"

	"github.com/peakee-labs/blinders/domain"
)

var errEmptyCompletion = errors.New("model returned no choices")

// Config selects the provider endpoint and models.
type Config struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
}

// Client explains phrases and embeds text.
type Client struct {
	api            *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c := &Client{
		api:            openai.NewClientWithConfig(oc),
		chatModel:      cfg.ChatModel,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
	}
	if c.chatModel == "" {
		c.chatModel = openai.GPT4oMini
	}
	if c.embeddingModel == "" {
		c.embeddingModel = openai.SmallEmbedding3
	}
	return c
}

// Explain asks the chat model to explain text as used in sentence.
func (c *Client) Explain(ctx context.Context, text, sentence string) (*domain.Explanation, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Temperature: 0.5,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: explainSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(explainUserPrompt, text, sentence)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyCompletion
	}

	var out domain.Explanation
	if err := sonic.UnmarshalString(resp.Choices[0].Message.Content, &out); err != nil {
		return nil, fmt.Errorf("decode explanation: %w", err)
	}
	out.DurationInSeconds = float32(time.Since(start).Seconds())
	return &out, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("model returned no embeddings")
	}
	return resp.Data[0].Embedding, nil
}
