package qualitative

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/winrate/internal/contracts"
)

// AnalysisInput 정성 분석 입력 (영업기회 특성 전체)
type AnalysisInput struct {
	OpportunityID         int64                     `json:"opportunity_id,omitempty"`
	Scores                contracts.DimensionScores `json:"dimension_scores"`
	TotalScore            float64                   `json:"total_score"`
	SalespersonWinRate    float64                   `json:"salesperson_win_rate"`
	SalespersonSampleSize int                       `json:"salesperson_sample_size"`
	CustomerName          string                    `json:"customer_name,omitempty"`
	CustomerCooperations  int                       `json:"customer_cooperations"`
	CustomerWins          int                       `json:"customer_wins"`
	IsRepeatCustomer      bool                      `json:"is_repeat_customer"`
	CompetitorCount       int                       `json:"competitor_count"`
	EstimatedAmount       *decimal.Decimal          `json:"estimated_amount,omitempty"`
	ProductMatchType      string                    `json:"product_match_type,omitempty"`
	PredictedWinRate      float64                   `json:"predicted_win_rate"` // 0~1, 결정론적 예측
}

// NewAnalysisInput combines the request with the deterministic prediction
func NewAnalysisInput(in contracts.PredictionInput, res *contracts.PredictionResult) AnalysisInput {
	ai := AnalysisInput{
		OpportunityID:    in.OpportunityID,
		Scores:           in.Scores,
		TotalScore:       in.Scores.Total(),
		CustomerName:     in.CustomerName,
		IsRepeatCustomer: in.IsRepeatCustomer,
		CompetitorCount:  in.Competitors(),
		EstimatedAmount:  in.EstimatedAmount,
		ProductMatchType: in.ProductMatchType,
	}
	if res != nil {
		ai.SalespersonWinRate = res.Factors.SalespersonWinRate
		ai.SalespersonSampleSize = res.Factors.SalespersonSampleSize
		ai.CustomerCooperations = res.Factors.CustomerCooperationCount
		ai.CustomerWins = res.Factors.CustomerWinCount
		ai.PredictedWinRate = res.PredictedWinRate
	}
	return ai
}

const systemPrompt = `You are an experienced B2B sales analyst for industrial equipment.
You assess how likely a sales opportunity is to be won and explain why.
Answer with a single JSON object only. Do not add any text outside the JSON.`

const responseSchema = `{
  "win_rate_score": <integer 0-100>,
  "confidence_interval": "<low>-<high>%",
  "influencing_factors": [
    {"factor": "<name>", "impact": "positive|negative|neutral", "score": <integer 1-10>, "description": "<one sentence>"}
  ],
  "competitor_analysis": {
    "summary": "<one paragraph>",
    "main_competitors": ["<name>"],
    "our_advantages": ["<text>"],
    "risks": ["<text>"]
  },
  "improvement_suggestions": [
    {"area": "<area>", "action": "<concrete action>", "priority": "high|medium|low"}
  ],
  "narrative": "<3-5 sentence summary for the sales manager>"
}`

// BuildPrompt 영업기회 특성을 모두 포함한 사용자 프롬프트
func BuildPrompt(in AnalysisInput) string {
	var sb strings.Builder

	sb.WriteString("Analyze the following sales opportunity.\n\n")

	sb.WriteString("## Evaluation scores (0-100)\n")
	for _, dim := range in.Scores.Dimensions() {
		fmt.Fprintf(&sb, "- %s: %.0f\n", dim.Label, dim.Score)
	}
	fmt.Fprintf(&sb, "- Weighted total: %.1f\n\n", in.TotalScore)

	sb.WriteString("## Context\n")
	fmt.Fprintf(&sb, "- Salesperson historical win rate: %.0f%% (%d closed deals)\n",
		in.SalespersonWinRate*100, in.SalespersonSampleSize)
	if in.CustomerName != "" {
		fmt.Fprintf(&sb, "- Customer: %s\n", in.CustomerName)
	}
	fmt.Fprintf(&sb, "- Past deals with this customer: %d (won %d)\n", in.CustomerCooperations, in.CustomerWins)
	fmt.Fprintf(&sb, "- Repeat customer: %s\n", yesNo(in.IsRepeatCustomer))
	fmt.Fprintf(&sb, "- Number of competitors: %d\n", in.CompetitorCount)
	if in.EstimatedAmount != nil {
		fmt.Fprintf(&sb, "- Estimated amount: %s\n", in.EstimatedAmount.StringFixed(0))
	}
	if in.ProductMatchType != "" {
		fmt.Fprintf(&sb, "- Product fit: %s\n", in.ProductMatchType)
	}
	fmt.Fprintf(&sb, "- Rule-based model estimate: %.0f%%\n\n", in.PredictedWinRate*100)

	sb.WriteString("Respond with JSON matching exactly this schema:\n")
	sb.WriteString(responseSchema)
	sb.WriteString("\n")

	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
