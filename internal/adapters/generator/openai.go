package generator

import (
	"context"
	"errors"
	"fmt"
	"sosibot/internal/core/domain"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// CompletionOptions are the request parameters shared by the chat completion backends.
type CompletionOptions struct {
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

type openAIClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse,
		error)
}

// OpenAI is the primary backend talking to an OpenAI compatible chat completion endpoint.
type OpenAI struct {
	client  openAIClient
	apiKey  string
	options CompletionOptions
}

// NewOpenAI creates the client; an empty baseURL keeps the SDK default.
func NewOpenAI(apiKey, baseURL string, options CompletionOptions) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(cfg),
		apiKey:  apiKey,
		options: options,
	}
}

func (o *OpenAI) GenerateReply(ctx context.Context, text string) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrPrimaryBackend, domain.ErrMissingCredential)
	}

	req := openai.ChatCompletionRequest{
		Model: o.options.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.options.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: o.options.Temperature,
		MaxTokens:   o.options.MaxTokens,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: openai API %d: %w", domain.ErrPrimaryBackend, apiErr.HTTPStatusCode, err)
		}

		return "", fmt.Errorf("%w: openai API error: %w", domain.ErrPrimaryBackend, err)
	}

	log.Debug().Str("model", resp.Model).Int("completionTokens", resp.Usage.CompletionTokens).
		Msg("openai completion")

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
