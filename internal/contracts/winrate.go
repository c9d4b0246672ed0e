package contracts

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Win-rate prediction contracts
// ⭐ SSOT: 수주 확률 예측 관련 타입은 여기서만
// =============================================================================

// ProbabilityLevel 수주 확률 등급
type ProbabilityLevel string

const (
	LevelVeryHigh ProbabilityLevel = "VERY_HIGH" // >= 0.80
	LevelHigh     ProbabilityLevel = "HIGH"      // >= 0.60
	LevelMedium   ProbabilityLevel = "MEDIUM"    // >= 0.40
	LevelLow      ProbabilityLevel = "LOW"       // >= 0.20
	LevelVeryLow  ProbabilityLevel = "VERY_LOW"
)

// ProbabilityLevels lists levels from highest to lowest
var ProbabilityLevels = []ProbabilityLevel{LevelVeryHigh, LevelHigh, LevelMedium, LevelLow, LevelVeryLow}

// ClassifyProbability maps a rate in [0,1] to its level.
// Thresholds are checked from the top; the first satisfied one wins.
func ClassifyProbability(rate float64) ProbabilityLevel {
	switch {
	case rate >= 0.80:
		return LevelVeryHigh
	case rate >= 0.60:
		return LevelHigh
	case rate >= 0.40:
		return LevelMedium
	case rate >= 0.20:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// ActualResult 실제 수주 결과
type ActualResult string

const (
	ResultWon     ActualResult = "WON"
	ResultLost    ActualResult = "LOST"
	ResultPending ActualResult = "PENDING"
)

// ParseActualResult accepts won/lost/pending in any case
func ParseActualResult(s string) (ActualResult, error) {
	switch ActualResult(strings.ToUpper(strings.TrimSpace(s))) {
	case ResultWon:
		return ResultWon, nil
	case ResultLost:
		return ResultLost, nil
	case ResultPending:
		return ResultPending, nil
	}
	return "", NewValidationError("actual_result", "must be one of won, lost, pending (got %q)", s)
}

// IsGraded reports whether the result is final (WON or LOST)
func (r ActualResult) IsGraded() bool {
	return r == ResultWon || r == ResultLost
}

// Product match types
const (
	ProductAdvantage = "advantage" // 자사 강점 제품
	ProductNew       = "new"       // 신규 제품
)

// 차원별 가중치 (합계 1.00)
const (
	WeightRequirementMaturity  = 0.20
	WeightTechnicalFeasibility = 0.25
	WeightBusinessFeasibility  = 0.20
	WeightDeliveryRisk         = 0.15
	WeightCustomerRelationship = 0.20
)

// DimensionScores 5개 평가 차원 점수 (각 0~100)
type DimensionScores struct {
	RequirementMaturity  float64 `json:"requirement_maturity"`  // 요구사항 성숙도
	TechnicalFeasibility float64 `json:"technical_feasibility"` // 기술 실현성
	BusinessFeasibility  float64 `json:"business_feasibility"`  // 사업 실현성
	DeliveryRisk         float64 `json:"delivery_risk"`         // 납기 리스크
	CustomerRelationship float64 `json:"customer_relationship"` // 고객 관계
}

// Dimension is one named sub-score
type Dimension struct {
	Key   string
	Label string
	Score float64
}

// Dimensions returns the five sub-scores in fixed order
func (d DimensionScores) Dimensions() []Dimension {
	return []Dimension{
		{Key: "requirement_maturity", Label: "Requirement maturity", Score: d.RequirementMaturity},
		{Key: "technical_feasibility", Label: "Technical feasibility", Score: d.TechnicalFeasibility},
		{Key: "business_feasibility", Label: "Business feasibility", Score: d.BusinessFeasibility},
		{Key: "delivery_risk", Label: "Delivery risk", Score: d.DeliveryRisk},
		{Key: "customer_relationship", Label: "Customer relationship", Score: d.CustomerRelationship},
	}
}

// Validate returns a *ValidationError for the first sub-score outside [0,100]
func (d DimensionScores) Validate() error {
	for _, dim := range d.Dimensions() {
		if math.IsNaN(dim.Score) || dim.Score < 0 || dim.Score > 100 {
			return NewValidationError(dim.Key, "must be within [0,100] (got %v)", dim.Score)
		}
	}
	return nil
}

// Total returns the weighted total on the 0~100 scale
func (d DimensionScores) Total() float64 {
	return d.RequirementMaturity*WeightRequirementMaturity +
		d.TechnicalFeasibility*WeightTechnicalFeasibility +
		d.BusinessFeasibility*WeightBusinessFeasibility +
		d.DeliveryRisk*WeightDeliveryRisk +
		d.CustomerRelationship*WeightCustomerRelationship
}

// PredictionInput 예측 요청
type PredictionInput struct {
	OpportunityID    int64            `json:"opportunity_id,omitempty"`
	Scores           DimensionScores  `json:"dimension_scores"`
	SalespersonID    int64            `json:"salesperson_id"`
	CustomerID       *int64           `json:"customer_id,omitempty"`
	CustomerName     string           `json:"customer_name,omitempty"`
	EstimatedAmount  *decimal.Decimal `json:"estimated_amount,omitempty"`
	CompetitorCount  *int             `json:"competitor_count,omitempty"` // nil → 3
	IsRepeatCustomer bool             `json:"is_repeat_customer"`
	ProductMatchType string           `json:"product_match_type,omitempty"`
}

// DefaultCompetitorCount is assumed when the request omits the competitor count
const DefaultCompetitorCount = 3

// Competitors returns the competitor count with the default applied
func (in PredictionInput) Competitors() int {
	if in.CompetitorCount == nil {
		return DefaultCompetitorCount
	}
	return *in.CompetitorCount
}

// PredictionFactors 곱셈 보정 계수 및 원시 입력 (예측 시마다 새로 계산, 단독 저장 안함)
type PredictionFactors struct {
	SalespersonFactor float64 `json:"salesperson_factor"`
	CustomerFactor    float64 `json:"customer_factor"`
	CompetitorFactor  float64 `json:"competitor_factor"`
	AmountFactor      float64 `json:"amount_factor"`
	ProductFactor     float64 `json:"product_factor"`

	SalespersonWinRate       float64          `json:"salesperson_win_rate"`
	SalespersonSampleSize    int              `json:"salesperson_sample_size"`
	CustomerCooperationCount int              `json:"customer_cooperation_count"`
	CustomerWinCount         int              `json:"customer_win_count"`
	CompetitorCount          int              `json:"competitor_count"`
	EstimatedAmount          *decimal.Decimal `json:"estimated_amount,omitempty"`
	ProductMatchType         string           `json:"product_match_type,omitempty"`
	IsRepeatCustomer         bool             `json:"is_repeat_customer"`
}

// Product multiplies the five coefficients
func (f PredictionFactors) Product() float64 {
	return f.SalespersonFactor * f.CustomerFactor * f.CompetitorFactor * f.AmountFactor * f.ProductFactor
}

// PredictionResult 결정론적 예측기 출력 (영속화 없음)
type PredictionResult struct {
	PredictedWinRate    float64           `json:"predicted_win_rate"` // 0~1
	Level               ProbabilityLevel  `json:"probability_level"`
	Confidence          float64           `json:"confidence"`
	BaseScore           float64           `json:"base_score"`  // 0~1
	TotalScore          float64           `json:"total_score"` // 0~100
	Factors             PredictionFactors `json:"factors"`
	Recommendations     []string          `json:"recommendations"`
	SimilarLeadsCount   int               `json:"similar_leads_count"`
	SimilarLeadsWinRate float64           `json:"similar_leads_win_rate"`
}

// Percent returns the predicted rate on the 0~100 scale rounded to 2 decimals
func (r *PredictionResult) Percent() float64 {
	return math.Round(r.PredictedWinRate*10000) / 100
}

// Prediction 저장된 예측 (생성 후 불변)
type Prediction struct {
	ID               int64              `json:"id"`
	OpportunityID    int64              `json:"opportunity_id"`
	PredictedWinRate float64            `json:"predicted_win_rate"` // 0~100
	Level            ProbabilityLevel   `json:"probability_level"`
	Confidence       float64            `json:"confidence"`
	Factors          PredictionFactors  `json:"factors"`
	Recommendations  []string           `json:"recommendations"`
	Qualitative      *QualitativeReport `json:"qualitative,omitempty"`
	ModelID          string             `json:"model_id"`
	CreatedBy        string             `json:"created_by"`
	CreatedAt        time.Time          `json:"created_at"`
}

// OutcomeHistoryRecord 예측 대비 실제 결과 이력
// PENDING 동안 PredictionError/IsCorrect 는 nil
type OutcomeHistoryRecord struct {
	ID               int64                  `json:"id"`
	OpportunityID    int64                  `json:"opportunity_id"`
	PredictionID     *int64                 `json:"prediction_id,omitempty"`
	PredictedWinRate float64                `json:"predicted_win_rate"` // 0~100
	ActualResult     ActualResult           `json:"actual_result"`
	ResultDate       *time.Time             `json:"result_date,omitempty"`
	Features         map[string]interface{} `json:"features,omitempty"`
	PredictionError  *float64               `json:"prediction_error,omitempty"`
	IsCorrect        *bool                  `json:"is_correct,omitempty"`
	GradedAt         *time.Time             `json:"graded_at,omitempty"`
	GradedBy         string                 `json:"graded_by,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// CorrectnessThreshold 정답 판정 기준 (5단계 등급과 무관하게 고정)
const CorrectnessThreshold = 50.0

// Grade computes error and correctness for a final result.
// predicted is on the 0~100 scale. ok is false for PENDING.
func Grade(predicted float64, result ActualResult) (predErr float64, correct bool, ok bool) {
	if !result.IsGraded() {
		return 0, false, false
	}

	actual := 0.0
	if result == ResultWon {
		actual = 100
	}
	predErr = math.Abs(actual - predicted)
	correct = (predicted >= CorrectnessThreshold && result == ResultWon) ||
		(predicted < CorrectnessThreshold && result == ResultLost)
	return predErr, correct, true
}

// ResultBreakdown 결과별 집계
type ResultBreakdown struct {
	Count        int     `json:"count"`
	AvgPredicted float64 `json:"avg_predicted"`
	AvgError     float64 `json:"avg_error"`
}

// AccuracySummary 모델 정확도 요약 (저장 안함)
type AccuracySummary struct {
	Total           int                              `json:"total"`
	Correct         int                              `json:"correct"`
	OverallAccuracy float64                          `json:"overall_accuracy"` // 0~100
	AverageError    float64                          `json:"average_error"`
	ByResult        map[ActualResult]ResultBreakdown `json:"by_result"`
}

// DistributionBucket 등급별 예측 분포
type DistributionBucket struct {
	Level         ProbabilityLevel `json:"level"`
	Count         int              `json:"count"`
	Won           int              `json:"won"`
	ActualWinRate float64          `json:"actual_win_rate"` // won/count
}

// WinRateDistribution 등급별 분포 (5개 버킷 항상 포함)
type WinRateDistribution struct {
	Start   *time.Time           `json:"start,omitempty"`
	End     *time.Time           `json:"end,omitempty"`
	Total   int                  `json:"total"`
	Buckets []DistributionBucket `json:"buckets"`
}

// Bucket returns the bucket for level, or a zero bucket
func (d *WinRateDistribution) Bucket(level ProbabilityLevel) DistributionBucket {
	for _, b := range d.Buckets {
		if b.Level == level {
			return b
		}
	}
	return DistributionBucket{Level: level}
}

// Validation report statuses
const (
	ValidationStatusOK               = "ok"
	ValidationStatusInsufficientData = "insufficient_data"
)

// ValidationReport 기간 내 이진 정확도 + Brier score
type ValidationReport struct {
	LookbackMonths int       `json:"lookback_months"`
	Since          time.Time `json:"since"`
	Status         string    `json:"status"`
	SampleSize     int       `json:"sample_size"`
	Accuracy       float64   `json:"accuracy"`    // 0~1
	BrierScore     float64   `json:"brier_score"` // 0~1, 낮을수록 좋음
	Message        string    `json:"message,omitempty"`
}

// Sufficient reports whether the report had data to evaluate
func (r *ValidationReport) Sufficient() bool {
	return r.Status == ValidationStatusOK
}

// LeadInput 배치 예측 항목
type LeadInput struct {
	LeadID int64 `json:"lead_id"`
	PredictionInput
}

// BatchItem 배치 예측 결과 (입력과 같은 위치)
type BatchItem struct {
	LeadID int64             `json:"lead_id"`
	Result *PredictionResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Failed reports whether the item carries an error
func (b BatchItem) Failed() bool {
	return b.Error != ""
}

// =============================================================================
// Qualitative analysis
// =============================================================================

// Qualitative report sources
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// InfluencingFactor 정성 분석 영향 요인
type InfluencingFactor struct {
	Factor      string `json:"factor"`
	Impact      string `json:"impact"` // positive / negative / neutral
	Score       int    `json:"score"`  // 1~10
	Description string `json:"description"`
}

// CompetitorAnalysis 경쟁 분석
type CompetitorAnalysis struct {
	Summary         string   `json:"summary"`
	MainCompetitors []string `json:"main_competitors,omitempty"`
	OurAdvantages   []string `json:"our_advantages,omitempty"`
	Risks           []string `json:"risks,omitempty"`
}

// ImprovementSuggestion 개선 제안
type ImprovementSuggestion struct {
	Area     string `json:"area"`
	Action   string `json:"action"`
	Priority string `json:"priority,omitempty"` // high / medium / low
}

// QualitativeReport 정성 분석 결과 (LLM 또는 폴백)
type QualitativeReport struct {
	WinRateScore           int                     `json:"win_rate_score"` // 0~100
	ConfidenceInterval     string                  `json:"confidence_interval"`
	InfluencingFactors     []InfluencingFactor     `json:"influencing_factors"`
	CompetitorAnalysis     CompetitorAnalysis      `json:"competitor_analysis"`
	ImprovementSuggestions []ImprovementSuggestion `json:"improvement_suggestions"`
	Narrative              string                  `json:"narrative"`

	Source         string    `json:"source"` // llm | fallback
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model,omitempty"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// IsFallback reports whether the deterministic stand-in produced the report
func (q *QualitativeReport) IsFallback() bool {
	return q.Source == SourceFallback
}

// ModelSuffix returns the model id suffix recorded with a prediction
func (q *QualitativeReport) ModelSuffix() string {
	if q == nil {
		return ""
	}
	if q.IsFallback() {
		return "+fallback"
	}
	return fmt.Sprintf("+%s:%s", q.Provider, q.Model)
}
