package generator

import (
	"context"
	"fmt"
	"sosibot/internal/core/domain"
	"strings"

	"github.com/revrost/go-openrouter"
	"github.com/rs/zerolog/log"
)

type openRouterClient interface {
	CreateChatCompletion(ctx context.Context,
		request openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error)
}

// OpenRouter is an alternative primary backend for deployments that route through openrouter.ai.
type OpenRouter struct {
	client  openRouterClient
	apiKey  string
	options CompletionOptions
}

func NewOpenRouter(apiKey string, options CompletionOptions) *OpenRouter {
	return &OpenRouter{
		apiKey:  apiKey,
		options: options,
		client: openrouter.NewClient(
			apiKey,
			openrouter.WithXTitle("sosibot"),
		),
	}
}

func (o *OpenRouter) GenerateReply(ctx context.Context, text string) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("%w: %w", domain.ErrPrimaryBackend, domain.ErrMissingCredential)
	}

	ccr := openrouter.ChatCompletionRequest{
		Model: o.options.Model,
		Messages: []openrouter.ChatCompletionMessage{
			{
				Role:    openrouter.ChatMessageRoleSystem,
				Content: openrouter.Content{Text: o.options.SystemPrompt},
			},
			{
				Role:    openrouter.ChatMessageRoleUser,
				Content: openrouter.Content{Text: text},
			},
		},
		Temperature: o.options.Temperature,
		MaxTokens:   o.options.MaxTokens,
	}

	resp, err := o.client.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return "", fmt.Errorf("%w: openrouter API error: %w", domain.ErrPrimaryBackend, err)
	}

	event := log.Debug().Str("model", resp.Model)
	if resp.Usage != nil {
		event = event.Int("completionTokens", resp.Usage.CompletionTokens)
	}
	event.Msg("openrouter completion")

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content.Text), nil
}
