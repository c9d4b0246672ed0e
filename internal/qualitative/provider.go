package qualitative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/httputil"
	"github.com/wonny/winrate/pkg/logger"
	"github.com/wonny/winrate/pkg/redis"
)

var (
	// ErrMissingCredential is returned when the selected provider has no API key
	ErrMissingCredential = errors.New("llm credential not configured")
	// ErrDisabled is returned when LLM analysis is turned off
	ErrDisabled = errors.New("llm analysis disabled")
)

// Provider 채팅 완성 API 공급자
// 구현체는 설정으로 생성 시점에 선택 (호출부 분기 없음)
type Provider interface {
	Name() string
	Model() string
	// Complete sends system+user prompts and returns the raw text of the answer
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NewProvider 설정에 따라 공급자 생성
func NewProvider(cfg config.LLMConfig, client *httputil.Client) (Provider, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	active := cfg.Active()
	if strings.TrimSpace(active.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrMissingCredential)
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(active, cfg, client), nil
	case config.ProviderAnthropic:
		return NewAnthropicProvider(active, cfg, client), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// NewHTTPClient builds the outbound client for LLM calls.
// No retry: a timed out or failed call goes straight to the fallback.
// Calls are throttled through Redis when enabled, in-process otherwise.
func NewHTTPClient(cfg *config.Config, log *logger.Logger, rc *redis.Client) *httputil.Client {
	client := httputil.NewWithTimeout(cfg, log, cfg.LLM.Timeout).DisableRetry()

	if rc != nil && rc.Enabled() {
		limiter := redis.NewRateLimiter(rc, "winrate")
		return client.WithRateLimiter(limiter, redis.LLMRateLimit(cfg.LLM.Provider, cfg.LLM.RatePerMinute))
	}
	return client.WithLocalLimiter(cfg.LLM.RatePerMinute)
}
