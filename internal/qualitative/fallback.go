package qualitative

import (
	"fmt"
	"math"
	"time"

	"github.com/wonny/winrate/internal/contracts"
)

// 폴백 점수 규칙
const (
	fallbackBase            = 50.0
	fallbackRepeatBonus     = 15.0
	fallbackFewCompetitors  = 10.0 // 경쟁사 1개 이하
	fallbackManyCompetitors = 15.0 // 경쟁사 5개 이상 (감점)
	fallbackWinRateWeight   = 30.0
)

// FallbackScore 결정론적 대체 점수 (0~100 정수)
func FallbackScore(in AnalysisInput) int {
	score := fallbackBase
	if in.IsRepeatCustomer {
		score += fallbackRepeatBonus
	}
	switch {
	case in.CompetitorCount <= 1:
		score += fallbackFewCompetitors
	case in.CompetitorCount >= 5:
		score -= fallbackManyCompetitors
	}
	score += (in.SalespersonWinRate - 0.5) * fallbackWinRateWeight

	return int(math.Round(clampFloat(score, 0, 100)))
}

// Fallback LLM 사용 불가 시 대체 정성 분석
func Fallback(in AnalysisInput, reason string) *contracts.QualitativeReport {
	score := FallbackScore(in)

	customerImpact, customerScore, customerDesc := "neutral", 5, "New customer without a track record with us"
	if in.IsRepeatCustomer || in.CustomerCooperations > 0 {
		customerImpact, customerScore = "positive", 8
		customerDesc = fmt.Sprintf("Existing customer with %d past deals (%d won)", in.CustomerCooperations, in.CustomerWins)
	}

	competitorImpact, competitorScore := "neutral", 5
	switch {
	case in.CompetitorCount <= 1:
		competitorImpact, competitorScore = "positive", 8
	case in.CompetitorCount >= 5:
		competitorImpact, competitorScore = "negative", 3
	}

	return &contracts.QualitativeReport{
		WinRateScore:       score,
		ConfidenceInterval: confidenceInterval(score),
		InfluencingFactors: []contracts.InfluencingFactor{
			{
				Factor:      "Customer type",
				Impact:      customerImpact,
				Score:       customerScore,
				Description: customerDesc,
			},
			{
				Factor:      "Competitor count",
				Impact:      competitorImpact,
				Score:       competitorScore,
				Description: fmt.Sprintf("%d competitors are bidding for this opportunity", in.CompetitorCount),
			},
		},
		CompetitorAnalysis: contracts.CompetitorAnalysis{
			Summary:       "Detailed competitor analysis is unavailable; review known rivals manually.",
			OurAdvantages: []string{"Existing product portfolio", "Local service and support"},
			Risks:         []string{"Price competition"},
		},
		ImprovementSuggestions: []contracts.ImprovementSuggestion{
			{Area: "customer", Action: "Confirm requirements and decision process with key stakeholders", Priority: "high"},
			{Area: "proposal", Action: "Strengthen the technical proposal and differentiation points", Priority: "medium"},
		},
		Narrative:      fmt.Sprintf("Rule-based estimate of %d%% generated without language model analysis.", score),
		Source:         contracts.SourceFallback,
		FallbackReason: reason,
		GeneratedAt:    time.Now(),
	}
}
