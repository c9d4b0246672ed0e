package qualitative

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/httputil"
	"github.com/wonny/winrate/pkg/logger"
)

const llmAnswer = `Here is my assessment:
{
  "win_rate_score": 72,
  "confidence_interval": "65-80%",
  "influencing_factors": [
    {"factor": "Customer relationship", "impact": "Positive", "score": 8, "description": "Long-standing customer"},
    {"factor": "Competition", "impact": "negative", "score": 14, "description": "Three active bidders"}
  ],
  "competitor_analysis": {"summary": "Two local vendors", "main_competitors": ["A", "B"]},
  "improvement_suggestions": [{"area": "pricing", "action": "Offer a service bundle", "priority": "high"}],
  "narrative": "Solid opportunity."
}
Let me know if you need more.`

func testInput() AnalysisInput {
	return AnalysisInput{
		OpportunityID: 42,
		Scores: contracts.DimensionScores{
			RequirementMaturity:  70,
			TechnicalFeasibility: 70,
			BusinessFeasibility:  70,
			DeliveryRisk:         70,
			CustomerRelationship: 70,
		},
		TotalScore:         70,
		SalespersonWinRate: 0.5,
		CompetitorCount:    3,
	}
}

func testHTTPClient() *httputil.Client {
	return httputil.New(config.Default(), logger.Nop()).DisableRetry()
}

func llmConfig(provider, baseURL string) config.LLMConfig {
	cfg := config.Default().LLM
	cfg.Provider = provider
	cfg.Timeout = 2 * time.Second
	switch provider {
	case config.ProviderOpenAI:
		cfg.OpenAI = config.ProviderConfig{APIKey: "sk-test", BaseURL: baseURL, Model: "gpt-test"}
	case config.ProviderAnthropic:
		cfg.Anthropic = config.ProviderConfig{APIKey: "ak-test", BaseURL: baseURL, Model: "claude-test"}
	}
	return cfg
}

func gatewayFor(t *testing.T, cfg config.LLMConfig) *Gateway {
	t.Helper()

	provider, err := NewProvider(cfg, testHTTPClient())
	require.NoError(t, err)
	return NewGateway(provider, nil, cfg.Timeout, zerolog.Nop())
}

func openAIServer(t *testing.T, content string, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-test",
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}))
}

func TestGateway_OpenAI(t *testing.T) {
	server := openAIServer(t, llmAnswer, http.StatusOK)
	defer server.Close()

	report := gatewayFor(t, llmConfig(config.ProviderOpenAI, server.URL)).Analyze(context.Background(), testInput())

	require.NotNil(t, report)
	assert.Equal(t, contracts.SourceLLM, report.Source)
	assert.Equal(t, "openai", report.Provider)
	assert.Equal(t, "gpt-test", report.Model)
	assert.Equal(t, 72, report.WinRateScore)
	assert.Equal(t, "65-80%", report.ConfidenceInterval)
	require.Len(t, report.InfluencingFactors, 2)
	assert.Equal(t, "positive", report.InfluencingFactors[0].Impact)
	assert.Equal(t, 10, report.InfluencingFactors[1].Score, "score clamped to 10")
	assert.Equal(t, []string{"A", "B"}, report.CompetitorAnalysis.MainCompetitors)
	assert.Equal(t, "+openai:gpt-test", report.ModelSuffix())
}

func TestGateway_Anthropic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Number of competitors: 3")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"content":     []map[string]string{{"type": "text", "text": llmAnswer}},
			"stop_reason": "end_turn",
		})
	}))
	defer server.Close()

	report := gatewayFor(t, llmConfig(config.ProviderAnthropic, server.URL)).Analyze(context.Background(), testInput())

	assert.Equal(t, contracts.SourceLLM, report.Source)
	assert.Equal(t, "anthropic", report.Provider)
	assert.Equal(t, 72, report.WinRateScore)
}

func TestGateway_FallbackOnFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		status  int
	}{
		{"http error", "", http.StatusInternalServerError},
		{"no json", "I cannot help with that.", http.StatusOK},
		{"broken json", `{"win_rate_score": 70,`, http.StatusOK},
		{"missing score", `{"narrative": "no score"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := openAIServer(t, tt.content, tt.status)
			defer server.Close()

			report := gatewayFor(t, llmConfig(config.ProviderOpenAI, server.URL)).Analyze(context.Background(), testInput())

			require.NotNil(t, report)
			assert.True(t, report.IsFallback())
			assert.NotEmpty(t, report.FallbackReason)
			assert.Equal(t, FallbackScore(testInput()), report.WinRateScore)
		})
	}
}

func TestGateway_TimeoutFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	cfg := llmConfig(config.ProviderAnthropic, server.URL)
	provider, err := NewProvider(cfg, testHTTPClient())
	require.NoError(t, err)
	gw := NewGateway(provider, nil, 50*time.Millisecond, zerolog.Nop())

	start := time.Now()
	report := gw.Analyze(context.Background(), testInput())

	assert.True(t, report.IsFallback())
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

// 자격 증명 없음 → 폴백, 신뢰구간 "{s-5}-{s+5}%"
func TestGateway_NoCredential(t *testing.T) {
	gw := NewGatewayFromConfig(config.Default(), testHTTPClient(), zerolog.Nop())
	assert.False(t, gw.Live())

	in := testInput()
	in.IsRepeatCustomer = true
	in.CompetitorCount = 1
	in.SalespersonWinRate = 0.8

	report := gw.Analyze(context.Background(), in)

	require.True(t, report.IsFallback())
	assert.GreaterOrEqual(t, report.WinRateScore, 0)
	assert.LessOrEqual(t, report.WinRateScore, 100)
	assert.Equal(t, fmt.Sprintf("%d-%d%%", report.WinRateScore-5, report.WinRateScore+5), report.ConfidenceInterval)
	assert.Regexp(t, regexp.MustCompile(`^-?\d+--?\d+%$`), report.ConfidenceInterval)
	assert.Len(t, report.InfluencingFactors, 2)
	assert.Contains(t, report.FallbackReason, ErrMissingCredential.Error())
	assert.Equal(t, "+fallback", report.ModelSuffix())
}

func TestNewProvider(t *testing.T) {
	cfg := config.Default().LLM

	_, err := NewProvider(cfg, nil)
	assert.ErrorIs(t, err, ErrMissingCredential)

	cfg.Enabled = false
	_, err = NewProvider(cfg, nil)
	assert.ErrorIs(t, err, ErrDisabled)

	cfg = llmConfig(config.ProviderAnthropic, "http://localhost")
	p, err := NewProvider(cfg, testHTTPClient())
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, "claude-test", p.Model())

	cfg.Provider = "gemini"
	_, err = NewProvider(cfg, nil)
	assert.Error(t, err)
}
