package winrate

import (
	"fmt"

	"github.com/wonny/winrate/internal/contracts"
)

// 개선 권고 기준
const (
	dimensionImprovementThreshold = 60.0

	salespersonReinforceBelow = 0.25
	salespersonCoachBelow     = 0.35

	competitorDifferentiateAbove = 4
	competitorAnalyzeAbove       = 2

	rateReevaluateBelow = 0.30
	rateFocusBelow      = 0.45
	ratePriorityAtLeast = 0.70
)

// 차원별 개선 조치
var dimensionActions = map[string]string{
	"requirement_maturity":  "clarify scope and acceptance criteria with the customer",
	"technical_feasibility": "run a technical review or proof of concept with engineering",
	"business_feasibility":  "confirm budget, approval path and expected ROI",
	"delivery_risk":         "agree a realistic delivery plan and secure supply capacity",
	"customer_relationship": "increase contact with key stakeholders and build trust",
}

// 권고 문구
const (
	msgReinforce      = "Salesperson win rate is %.0f%%: assign a senior salesperson to support this deal"
	msgCoaching       = "Salesperson win rate is %.0f%%: schedule deal coaching before the next customer meeting"
	msgDifferentiate  = "%d competitors involved: build a clear differentiation strategy (price, delivery, service)"
	msgCompetitive    = "%d competitors involved: prepare a competitive analysis of the main rivals"
	msgNewProductRisk = "New product proposal: review technical risk and prepare a proven substitute option"
	msgAdvantage      = "Product advantage: highlight our strengths and references in the proposal"
	msgReevaluate     = "Predicted win rate %.0f%%: re-evaluate whether to keep investing in this deal"
	msgFocus          = "Predicted win rate %.0f%%: focus on reaching the key decision makers"
	msgPriority       = "Predicted win rate %.0f%%: treat as a priority deal and secure resources to close"
	msgDimension      = "Improve %s (%.0f/100): %s"
)

// Recommendations 개선 권고 생성
// 모든 규칙은 독립적으로 평가되어 해당되는 메시지를 모두 추가
func Recommendations(scores contracts.DimensionScores, salespersonWinRate float64, competitors int, productMatchType string, rate float64) []string {
	recs := make([]string, 0, 8)

	for _, dim := range scores.Dimensions() {
		if dim.Score < dimensionImprovementThreshold {
			recs = append(recs, fmt.Sprintf(msgDimension, dim.Label, dim.Score, dimensionActions[dim.Key]))
		}
	}

	switch {
	case salespersonWinRate < salespersonReinforceBelow:
		recs = append(recs, fmt.Sprintf(msgReinforce, salespersonWinRate*100))
	case salespersonWinRate < salespersonCoachBelow:
		recs = append(recs, fmt.Sprintf(msgCoaching, salespersonWinRate*100))
	}

	switch {
	case competitors > competitorDifferentiateAbove:
		recs = append(recs, fmt.Sprintf(msgDifferentiate, competitors))
	case competitors > competitorAnalyzeAbove:
		recs = append(recs, fmt.Sprintf(msgCompetitive, competitors))
	}

	switch productMatchType {
	case contracts.ProductNew:
		recs = append(recs, msgNewProductRisk)
	case contracts.ProductAdvantage:
		recs = append(recs, msgAdvantage)
	}

	switch {
	case rate < rateReevaluateBelow:
		recs = append(recs, fmt.Sprintf(msgReevaluate, rate*100))
	case rate < rateFocusBelow:
		recs = append(recs, fmt.Sprintf(msgFocus, rate*100))
	case rate >= ratePriorityAtLeast:
		recs = append(recs, fmt.Sprintf(msgPriority, rate*100))
	}

	return recs
}
