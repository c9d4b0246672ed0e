package winrate

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/winrate/internal/contracts"
)

// Opportunity outcomes stored on sales.opportunities
const (
	OutcomeOpen = "OPEN"
	OutcomeWon  = "WON"
	OutcomeLost = "LOST"
)

// Opportunity 영업기회 (통계 조회 대상, 채점 시 outcome 갱신)
type Opportunity struct {
	ID              int64
	Name            string
	SalespersonID   int64
	CustomerID      *int64
	CustomerName    string
	Outcome         string
	EvaluationScore *float64
	EstimatedAmount *decimal.Decimal
	CreatedAt       time.Time
	ClosedAt        *time.Time
}

// PredictionStore 예측 저장소
type PredictionStore interface {
	// RecordPrediction inserts the prediction and its PENDING history record in one transaction.
	// ID and CreatedAt of p are filled in. Returns *contracts.NotFoundError for an unknown opportunity.
	RecordPrediction(ctx context.Context, p *contracts.Prediction, features map[string]interface{}) (*contracts.OutcomeHistoryRecord, error)
	GetPrediction(ctx context.Context, id int64) (*contracts.Prediction, error)
	ListPredictions(ctx context.Context, opportunityID int64, limit int) ([]contracts.Prediction, error)
}

// HistoryImporter bulk-inserts imported history rows
type HistoryImporter interface {
	InsertHistoryBatch(ctx context.Context, records []contracts.OutcomeHistoryRecord) (int, error)
}

// Store is everything the service needs from persistence
type Store interface {
	StatsStore
	GradeStore
	PredictionStore
	HistoryImporter
}

// outcomeFor maps a graded result to the opportunity outcome column
func outcomeFor(result contracts.ActualResult) string {
	switch result {
	case contracts.ResultWon:
		return OutcomeWon
	case contracts.ResultLost:
		return OutcomeLost
	default:
		return OutcomeOpen
	}
}

// FeatureSnapshot 이력 레코드에 저장할 입력 스냅샷
func FeatureSnapshot(in contracts.PredictionInput, res *contracts.PredictionResult) map[string]interface{} {
	features := map[string]interface{}{
		"requirement_maturity":  in.Scores.RequirementMaturity,
		"technical_feasibility": in.Scores.TechnicalFeasibility,
		"business_feasibility":  in.Scores.BusinessFeasibility,
		"delivery_risk":         in.Scores.DeliveryRisk,
		"customer_relationship": in.Scores.CustomerRelationship,
		"total_score":           round(res.TotalScore, 2),
		"salesperson_id":        in.SalespersonID,
		"competitor_count":      res.Factors.CompetitorCount,
		"is_repeat_customer":    in.IsRepeatCustomer,
		"product_match_type":    in.ProductMatchType,
		"salesperson_win_rate":  res.Factors.SalespersonWinRate,
		"customer_cooperations": res.Factors.CustomerCooperationCount,
		"similar_leads_count":   res.SimilarLeadsCount,
	}
	if in.CustomerID != nil {
		features["customer_id"] = *in.CustomerID
	}
	if in.EstimatedAmount != nil {
		features["estimated_amount"] = in.EstimatedAmount.String()
	}
	return features
}
