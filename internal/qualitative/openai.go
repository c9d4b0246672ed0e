package qualitative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/httputil"
)

// OpenAIProvider OpenAI 호환 chat/completions 공급자
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIProvider creates a provider that sends requests through the shared HTTP client
func NewOpenAIProvider(pc config.ProviderConfig, cfg config.LLMConfig, client *httputil.Client) *OpenAIProvider {
	oc := openai.DefaultConfig(pc.APIKey)
	if pc.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(pc.BaseURL, "/")
	}
	if client != nil {
		oc.HTTPClient = client
	}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(oc),
		model:       pc.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

// Name implements Provider
func (p *OpenAIProvider) Name() string { return config.ProviderOpenAI }

// Model implements Provider
func (p *OpenAIProvider) Model() string { return p.model }

// Complete implements Provider
func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
