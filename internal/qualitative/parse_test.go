package qualitative

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/winrate/internal/contracts"
)

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON("prefix {\"a\": {\"b\": 1}} suffix")
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, err = ExtractJSON("no braces here")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ExtractJSON("} reversed {")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestParseReport(t *testing.T) {
	report, err := ParseReport(llmAnswer)
	require.NoError(t, err)

	assert.Equal(t, 72, report.WinRateScore)
	assert.Equal(t, contracts.SourceLLM, report.Source)
	assert.Equal(t, "Solid opportunity.", report.Narrative)
	require.Len(t, report.ImprovementSuggestions, 1)
	assert.Equal(t, "high", report.ImprovementSuggestions[0].Priority)
}

func TestParseReport_ClampsAndDefaults(t *testing.T) {
	report, err := ParseReport(`{"win_rate_score": 140, "influencing_factors": [{"factor": "x", "score": -3}, {"factor": ""}]}`)
	require.NoError(t, err)

	assert.Equal(t, 100, report.WinRateScore)
	assert.Equal(t, "95-105%", report.ConfidenceInterval)
	require.Len(t, report.InfluencingFactors, 1, "factors without a name are dropped")
	assert.Equal(t, 1, report.InfluencingFactors[0].Score)
	assert.NotNil(t, report.ImprovementSuggestions)
}

func TestParseReport_LooseShapes(t *testing.T) {
	report, err := ParseReport(`{
		"win_rate_score": 55.4,
		"competitor_analysis": "Mostly price driven",
		"improvement_suggestions": ["Call the CTO", "Lower the price"]
	}`)
	require.NoError(t, err)

	assert.Equal(t, 55, report.WinRateScore)
	assert.Equal(t, "Mostly price driven", report.CompetitorAnalysis.Summary)
	require.Len(t, report.ImprovementSuggestions, 2)
	assert.Equal(t, "Call the CTO", report.ImprovementSuggestions[0].Action)
}

func TestParseReport_Errors(t *testing.T) {
	_, err := ParseReport("nothing")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseReport(`{"narrative": "x"}`)
	assert.ErrorIs(t, err, ErrMissingScore)

	_, err = ParseReport(`{"win_rate_score": "high"}`)
	assert.Error(t, err)
}

func TestFallbackScore(t *testing.T) {
	tests := []struct {
		name string
		in   AnalysisInput
		want int
	}{
		{"neutral", AnalysisInput{CompetitorCount: 3, SalespersonWinRate: 0.5}, 50},
		{"repeat customer", AnalysisInput{IsRepeatCustomer: true, CompetitorCount: 3, SalespersonWinRate: 0.5}, 65},
		{"single competitor", AnalysisInput{CompetitorCount: 1, SalespersonWinRate: 0.5}, 60},
		{"many competitors", AnalysisInput{CompetitorCount: 5, SalespersonWinRate: 0.5}, 35},
		{"strong salesperson", AnalysisInput{CompetitorCount: 3, SalespersonWinRate: 1.0}, 65},
		{"weak salesperson", AnalysisInput{CompetitorCount: 3, SalespersonWinRate: 0.2}, 41},
		{"best case", AnalysisInput{IsRepeatCustomer: true, CompetitorCount: 0, SalespersonWinRate: 1.0}, 90},
		{"worst case", AnalysisInput{CompetitorCount: 9, SalespersonWinRate: 0}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackScore(tt.in))
		})
	}
}

func TestFallback(t *testing.T) {
	in := AnalysisInput{CompetitorCount: 6, SalespersonWinRate: 0.3}

	report := Fallback(in, "llm credential not configured")

	assert.True(t, report.IsFallback())
	assert.Equal(t, 29, report.WinRateScore)
	assert.Equal(t, "24-34%", report.ConfidenceInterval)
	require.Len(t, report.InfluencingFactors, 2)
	assert.Equal(t, "Customer type", report.InfluencingFactors[0].Factor)
	assert.Equal(t, "Competitor count", report.InfluencingFactors[1].Factor)
	assert.Equal(t, "negative", report.InfluencingFactors[1].Impact)
	assert.NotEmpty(t, report.CompetitorAnalysis.Summary)
	assert.NotEmpty(t, report.ImprovementSuggestions)
}

func TestBuildPrompt(t *testing.T) {
	in := testInput()
	in.CustomerName = "Hanil Steel"
	in.ProductMatchType = contracts.ProductAdvantage

	prompt := BuildPrompt(in)

	for _, want := range []string{"Requirement maturity: 70", "Weighted total: 70.0", "Customer: Hanil Steel",
		"Product fit: advantage", "win_rate_score", "confidence_interval"} {
		assert.True(t, strings.Contains(prompt, want), "prompt should contain %q", want)
	}
}
