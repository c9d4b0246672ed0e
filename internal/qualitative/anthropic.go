package qualitative

import (
	"context"
	"errors"
	"strings"

	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/httputil"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider Anthropic messages API 공급자
type AnthropicProvider struct {
	client      *httputil.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
}

// NewAnthropicProvider creates a provider for {base}/v1/messages
func NewAnthropicProvider(pc config.ProviderConfig, cfg config.LLMConfig, client *httputil.Client) *AnthropicProvider {
	return &AnthropicProvider{
		client:      client,
		apiKey:      pc.APIKey,
		baseURL:     strings.TrimRight(pc.BaseURL, "/"),
		model:       pc.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Name implements Provider
func (p *AnthropicProvider) Name() string { return config.ProviderAnthropic }

// Model implements Provider
func (p *AnthropicProvider) Model() string { return p.model }

// Complete implements Provider
func (p *AnthropicProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	body := anthropicRequest{
		Model:       p.model,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}

	resp, err := p.client.PostJSONWithHeaders(ctx, p.baseURL+"/v1/messages", headers, body)
	if err != nil {
		return "", err
	}

	var out anthropicResponse
	if err := httputil.DecodeJSON(resp, &out); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic returned no text content")
	}
	return sb.String(), nil
}
