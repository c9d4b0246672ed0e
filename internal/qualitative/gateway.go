package qualitative

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/httputil"
)

// DefaultTimeout LLM 요청 타임아웃
const DefaultTimeout = 30 * time.Second

// Gateway 정성 분석 게이트웨이
// 유일한 네트워크 I/O 지점. 실패는 밖으로 전파되지 않고 폴백으로 대체
type Gateway struct {
	provider    Provider
	providerErr error
	timeout     time.Duration
	log         zerolog.Logger
}

// NewGateway creates a gateway. provider may be nil, in which case providerErr
// explains why and every call returns the fallback.
func NewGateway(provider Provider, providerErr error, timeout time.Duration, log zerolog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if provider == nil && providerErr == nil {
		providerErr = ErrMissingCredential
	}

	return &Gateway{
		provider:    provider,
		providerErr: providerErr,
		timeout:     timeout,
		log:         log.With().Str("component", "qualitative.gateway").Logger(),
	}
}

// NewGatewayFromConfig selects the provider from cfg.LLM
func NewGatewayFromConfig(cfg *config.Config, client *httputil.Client, log zerolog.Logger) *Gateway {
	provider, err := NewProvider(cfg.LLM, client)
	g := NewGateway(provider, err, cfg.LLM.Timeout, log)

	if err != nil {
		g.log.Warn().Err(err).Msg("llm provider unavailable, qualitative analysis will use fallback")
	} else {
		g.log.Info().
			Str("provider", provider.Name()).
			Str("model", provider.Model()).
			Dur("timeout", g.timeout).
			Msg("llm provider configured")
	}
	return g
}

// Live reports whether a provider is configured
func (g *Gateway) Live() bool {
	return g.provider != nil
}

// Analyze 정성 분석 (항상 결과 반환)
func (g *Gateway) Analyze(ctx context.Context, in AnalysisInput) (report *contracts.QualitativeReport) {
	defer func() {
		if p := recover(); p != nil {
			g.log.Error().Interface("panic", p).Msg("qualitative analysis panicked, using fallback")
			report = Fallback(in, fmt.Sprintf("panic: %v", p))
		}
	}()

	report, err := g.attempt(ctx, in)
	if err != nil {
		g.log.Warn().Err(err).
			Int64("opportunity_id", in.OpportunityID).
			Msg("qualitative analysis failed, using fallback")
		return Fallback(in, err.Error())
	}

	g.log.Debug().
		Int64("opportunity_id", in.OpportunityID).
		Str("provider", report.Provider).
		Int("win_rate_score", report.WinRateScore).
		Msg("qualitative analysis completed")

	return report
}

// attempt performs the provider call and parse; every failure comes back as an error
func (g *Gateway) attempt(ctx context.Context, in AnalysisInput) (*contracts.QualitativeReport, error) {
	if g.provider == nil {
		return nil, &contracts.ExternalServiceError{Provider: "none", Op: "configure", Err: g.providerErr}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.provider.Complete(ctx, systemPrompt, BuildPrompt(in))
	if err != nil {
		return nil, &contracts.ExternalServiceError{Provider: g.provider.Name(), Op: "complete", Err: err}
	}

	report, err := ParseReport(text)
	if err != nil {
		return nil, &contracts.ExternalServiceError{Provider: g.provider.Name(), Op: "parse", Err: err}
	}

	report.Provider = g.provider.Name()
	report.Model = g.provider.Model()
	report.GeneratedAt = time.Now()
	return report, nil
}
