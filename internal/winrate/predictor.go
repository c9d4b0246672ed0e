package winrate

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/winrate/internal/contracts"
)

// Predictor 결정론적 가중 계수 예측기
// 상태 없음: 동시 호출 안전, 동일 입력 + 동일 이력이면 동일 출력
type Predictor struct {
	stats *HistoryStats
	log   zerolog.Logger
}

// NewPredictor 새 예측기 생성
func NewPredictor(stats *HistoryStats, log zerolog.Logger) *Predictor {
	return &Predictor{
		stats: stats,
		log:   log.With().Str("component", "winrate.predictor").Logger(),
	}
}

// Stats exposes the underlying historical statistics provider
func (p *Predictor) Stats() *HistoryStats {
	return p.stats
}

// Predict 수주 확률 예측 (영속화 없음)
func (p *Predictor) Predict(ctx context.Context, in contracts.PredictionInput) (*contracts.PredictionResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	// 1. 기본 점수 (0~1)
	totalScore := in.Scores.Total()
	baseScore := totalScore / 100

	// 2~3. 이력 기반 계수
	sp := p.stats.SalespersonWinRate(ctx, in.SalespersonID)
	cust := p.stats.CustomerCooperation(ctx, in.CustomerID, in.CustomerName)

	// 4. 직접 계산 계수
	competitors := in.Competitors()
	factors := contracts.PredictionFactors{
		SalespersonFactor: SalespersonFactor(sp.WinRate),
		CustomerFactor:    CustomerFactor(cust.Cooperations, cust.Wins, in.IsRepeatCustomer),
		CompetitorFactor:  CompetitorFactor(competitors),
		AmountFactor:      AmountFactor(in.EstimatedAmount),
		ProductFactor:     ProductFactor(in.ProductMatchType),

		SalespersonWinRate:       sp.WinRate,
		SalespersonSampleSize:    sp.SampleSize,
		CustomerCooperationCount: cust.Cooperations,
		CustomerWinCount:         cust.Wins,
		CompetitorCount:          competitors,
		EstimatedAmount:          in.EstimatedAmount,
		ProductMatchType:         in.ProductMatchType,
		IsRepeatCustomer:         in.IsRepeatCustomer,
	}

	// 5. 곱셈 후 [0,1] 클램프
	rate := storedRate(baseScore * factors.Product())

	// 8. 유사 리드 통계 (보고용, 예측값에 반영 안함)
	similar := p.stats.SimilarLeads(ctx, totalScore)

	result := &contracts.PredictionResult{
		PredictedWinRate:    rate,
		Level:               contracts.ClassifyProbability(rate),
		Confidence:          ConfidenceFromSample(sp.SampleSize),
		BaseScore:           baseScore,
		TotalScore:          totalScore,
		Factors:             roundFactors(factors),
		Recommendations:     Recommendations(in.Scores, sp.WinRate, competitors, in.ProductMatchType, rate),
		SimilarLeadsCount:   similar.Count,
		SimilarLeadsWinRate: round(similar.WinRate, 3),
	}

	p.log.Debug().
		Int64("opportunity_id", in.OpportunityID).
		Int64("salesperson_id", in.SalespersonID).
		Float64("base_score", baseScore).
		Float64("predicted_win_rate", rate).
		Str("level", string(result.Level)).
		Float64("confidence", result.Confidence).
		Msg("prediction generated")

	return result, nil
}

// ConfidenceFromSample 영업담당자 표본 수 기반 신뢰도
func ConfidenceFromSample(sampleSize int) float64 {
	switch {
	case sampleSize >= 20:
		return 0.85
	case sampleSize >= 10:
		return 0.70
	case sampleSize >= 5:
		return 0.55
	default:
		return 0.40
	}
}

func validateInput(in contracts.PredictionInput) error {
	if err := in.Scores.Validate(); err != nil {
		return err
	}
	if in.CompetitorCount != nil && *in.CompetitorCount < 0 {
		return contracts.NewValidationError("competitor_count", "must not be negative (got %d)", *in.CompetitorCount)
	}
	if in.EstimatedAmount != nil && in.EstimatedAmount.IsNegative() {
		return contracts.NewValidationError("estimated_amount", "must not be negative (got %s)", in.EstimatedAmount.String())
	}
	return nil
}

func roundFactors(f contracts.PredictionFactors) contracts.PredictionFactors {
	f.SalespersonFactor = round(f.SalespersonFactor, 3)
	f.CustomerFactor = round(f.CustomerFactor, 3)
	f.CompetitorFactor = round(f.CompetitorFactor, 3)
	f.AmountFactor = round(f.AmountFactor, 3)
	f.ProductFactor = round(f.ProductFactor, 3)
	f.SalespersonWinRate = round(f.SalespersonWinRate, 3)
	return f
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// storedRate clamps to [0,1] and rounds to the stored precision (NUMERIC(5,2) percent)
// so the level recorded now matches the bucket the stored percent falls into later
func storedRate(v float64) float64 {
	return round(clamp(v, 0, 1), 4)
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
