package winrate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/pkg/config"
)

// fakeStats returns fixed aggregates
type fakeStats struct {
	spWins, spTotal   int
	coop, custWins    int
	simWins, simTotal int
	err               error

	customerCalls int
	simMin        float64
	simMax        float64
}

func (f *fakeStats) SalespersonOutcomes(_ context.Context, _ int64, _ time.Time) (int, int, error) {
	return f.spWins, f.spTotal, f.err
}

func (f *fakeStats) CustomerOutcomes(_ context.Context, _ *int64, _ string) (int, int, error) {
	f.customerCalls++
	return f.coop, f.custWins, f.err
}

func (f *fakeStats) SimilarOutcomes(_ context.Context, minScore, maxScore float64) (int, int, error) {
	f.simMin, f.simMax = minScore, maxScore
	return f.simWins, f.simTotal, f.err
}

func newTestPredictor(store StatsStore) *Predictor {
	stats := NewHistoryStats(store, config.Default().Prediction, zerolog.Nop())
	return NewPredictor(stats, zerolog.Nop())
}

func uniform(score float64) contracts.DimensionScores {
	return contracts.DimensionScores{
		RequirementMaturity:  score,
		TechnicalFeasibility: score,
		BusinessFeasibility:  score,
		DeliveryRisk:         score,
		CustomerRelationship: score,
	}
}

func intPtr(v int) *int { return &v }

func TestPredict_StrongOpportunityClampsToOne(t *testing.T) {
	store := &fakeStats{spWins: 14, spTotal: 20, coop: 5, custWins: 3}
	p := newTestPredictor(store)

	res, err := p.Predict(context.Background(), contracts.PredictionInput{
		OpportunityID:    1,
		Scores:           uniform(80),
		SalespersonID:    7,
		CustomerName:     "Daesung Machinery",
		CompetitorCount:  intPtr(1),
		EstimatedAmount:  dec(50_000),
		ProductMatchType: contracts.ProductAdvantage,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.80, res.BaseScore, 1e-9)
	assert.Equal(t, 0.85, res.Factors.SalespersonFactor)
	assert.Equal(t, 1.30, res.Factors.CustomerFactor)
	assert.Equal(t, 1.20, res.Factors.CompetitorFactor)
	assert.Equal(t, 1.10, res.Factors.AmountFactor)
	assert.Equal(t, 1.15, res.Factors.ProductFactor)
	assert.Greater(t, res.BaseScore*res.Factors.Product(), 1.0, "raw product exceeds 1 before clamping")

	assert.Equal(t, 1.0, res.PredictedWinRate)
	assert.Equal(t, contracts.LevelVeryHigh, res.Level)
	assert.Equal(t, 0.85, res.Confidence)
	assert.Equal(t, 100.0, res.Percent())
}

func TestPredict_WeakOpportunity(t *testing.T) {
	store := &fakeStats{spWins: 3, spTotal: 20}
	p := newTestPredictor(store)

	res, err := p.Predict(context.Background(), contracts.PredictionInput{
		OpportunityID:    2,
		Scores:           uniform(40),
		SalespersonID:    9,
		CompetitorCount:  intPtr(6),
		EstimatedAmount:  dec(6_000_000),
		ProductMatchType: contracts.ProductNew,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.575, res.Factors.SalespersonFactor)
	assert.Equal(t, 1.0, res.Factors.CustomerFactor)
	assert.Equal(t, 0.70, res.Factors.CompetitorFactor)
	assert.Equal(t, 0.90, res.Factors.AmountFactor)
	assert.Equal(t, 0.85, res.Factors.ProductFactor)
	assert.InDelta(t, 0.123, res.PredictedWinRate, 0.002)
	assert.Equal(t, contracts.LevelVeryLow, res.Level)
	assert.Equal(t, 0, store.customerCalls, "no customer identity means no lookup")

	require.Len(t, res.Recommendations, 9)
	for _, dim := range uniform(40).Dimensions() {
		assert.Contains(t, res.Recommendations, fmt.Sprintf(msgDimension, dim.Label, 40.0, dimensionActions[dim.Key]))
	}
	assert.Contains(t, res.Recommendations, fmt.Sprintf(msgReinforce, 15.0))
	assert.Contains(t, res.Recommendations, fmt.Sprintf(msgDifferentiate, 6))
	assert.Contains(t, res.Recommendations, msgNewProductRisk)
	assert.Contains(t, res.Recommendations, fmt.Sprintf(msgReevaluate, res.PredictedWinRate*100))
}

func TestPredict_SmallSampleConfidence(t *testing.T) {
	p := newTestPredictor(&fakeStats{spWins: 0, spTotal: 3})

	res, err := p.Predict(context.Background(), contracts.PredictionInput{Scores: uniform(40), SalespersonID: 9})
	require.NoError(t, err)

	assert.Equal(t, 0.40, res.Confidence)
	assert.Equal(t, 3, res.Factors.SalespersonSampleSize)
	assert.Equal(t, 0.0, res.Factors.SalespersonWinRate)
}

func TestPredict_BoundaryIsVeryHigh(t *testing.T) {
	// 승률 100%, 나머지 계수 1.0 → 0.80 그대로
	p := newTestPredictor(&fakeStats{spWins: 10, spTotal: 10})

	res, err := p.Predict(context.Background(), contracts.PredictionInput{Scores: uniform(80), SalespersonID: 1})
	require.NoError(t, err)

	assert.Equal(t, 0.80, res.PredictedWinRate)
	assert.Equal(t, contracts.LevelVeryHigh, res.Level)
}

func TestPredict_LevelMatchesStoredPercent(t *testing.T) {
	// 0.79996 은 80.00% 로 저장되므로 등급도 VERY_HIGH 여야 분포 버킷과 일치
	p := newTestPredictor(&fakeStats{spWins: 10, spTotal: 10})

	res, err := p.Predict(context.Background(), contracts.PredictionInput{Scores: uniform(79.996), SalespersonID: 1})
	require.NoError(t, err)

	assert.Equal(t, 80.0, res.Percent())
	assert.Equal(t, contracts.LevelVeryHigh, res.Level)

	dist := Distribute([]contracts.OutcomeHistoryRecord{
		{PredictedWinRate: res.Percent(), ActualResult: contracts.ResultWon},
	})
	assert.Equal(t, 1, dist.Bucket(res.Level).Count)
}

func TestPredict_Defaults(t *testing.T) {
	store := &fakeStats{}
	p := newTestPredictor(store)

	res, err := p.Predict(context.Background(), contracts.PredictionInput{Scores: uniform(50), SalespersonID: 3})
	require.NoError(t, err)

	assert.Equal(t, DefaultSalespersonWinRate, res.Factors.SalespersonWinRate)
	assert.Equal(t, 0.6, res.Factors.SalespersonFactor)
	assert.Equal(t, contracts.DefaultCompetitorCount, res.Factors.CompetitorCount)
	assert.Equal(t, 1.0, res.Factors.CompetitorFactor)
	assert.Equal(t, 1.0, res.Factors.AmountFactor)
	assert.Equal(t, 1.0, res.Factors.ProductFactor)
	assert.InDelta(t, 0.30, res.PredictedWinRate, 1e-9)
	assert.Equal(t, 0.40, res.Confidence)
	assert.Equal(t, 0, res.SimilarLeadsCount)
}

func TestPredict_StoreFailureUsesDefaults(t *testing.T) {
	id := int64(11)
	store := &fakeStats{spWins: 9, spTotal: 10, coop: 9, custWins: 9, err: errors.New("connection refused")}
	p := newTestPredictor(store)

	res, err := p.Predict(context.Background(), contracts.PredictionInput{
		Scores:        uniform(60),
		SalespersonID: 3,
		CustomerID:    &id,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultSalespersonWinRate, res.Factors.SalespersonWinRate)
	assert.Equal(t, 1.0, res.Factors.CustomerFactor)
	assert.Equal(t, 0, res.SimilarLeadsCount)
}

func TestPredict_SimilarLeads(t *testing.T) {
	store := &fakeStats{simWins: 2, simTotal: 3}
	p := newTestPredictor(store)

	res, err := p.Predict(context.Background(), contracts.PredictionInput{Scores: uniform(70)})
	require.NoError(t, err)

	assert.Equal(t, 3, res.SimilarLeadsCount)
	assert.Equal(t, 0.667, res.SimilarLeadsWinRate)
	assert.InDelta(t, 60.0, store.simMin, 1e-9)
	assert.InDelta(t, 80.0, store.simMax, 1e-9)
}

func TestPredict_RejectsInvalidInput(t *testing.T) {
	p := newTestPredictor(&fakeStats{})
	neg := decimal.NewFromInt(-1)

	tests := []struct {
		name string
		in   contracts.PredictionInput
	}{
		{"score above 100", contracts.PredictionInput{Scores: contracts.DimensionScores{RequirementMaturity: 101}}},
		{"negative score", contracts.PredictionInput{Scores: contracts.DimensionScores{DeliveryRisk: -5}}},
		{"negative competitors", contracts.PredictionInput{Scores: uniform(50), CompetitorCount: intPtr(-1)}},
		{"negative amount", contracts.PredictionInput{Scores: uniform(50), EstimatedAmount: &neg}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Predict(context.Background(), tt.in)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, contracts.ErrValidation)
		})
	}
}

func TestPredict_AlwaysWithinRange(t *testing.T) {
	amounts := []*decimal.Decimal{nil, dec(0), dec(200_000), dec(20_000_000)}
	products := []string{"", contracts.ProductAdvantage, contracts.ProductNew}

	for _, score := range []float64{0, 25, 50, 75, 100} {
		for _, sp := range []*fakeStats{{}, {spWins: 10, spTotal: 10, coop: 9, custWins: 9}} {
			p := newTestPredictor(sp)
			for competitors := 0; competitors <= 8; competitors++ {
				for _, amount := range amounts {
					for _, product := range products {
						res, err := p.Predict(context.Background(), contracts.PredictionInput{
							Scores:           uniform(score),
							CustomerName:     "acme",
							CompetitorCount:  intPtr(competitors),
							EstimatedAmount:  amount,
							ProductMatchType: product,
							IsRepeatCustomer: true,
						})
						require.NoError(t, err)
						assert.GreaterOrEqual(t, res.PredictedWinRate, 0.0)
						assert.LessOrEqual(t, res.PredictedWinRate, 1.0)
						assert.Equal(t, contracts.ClassifyProbability(res.PredictedWinRate), res.Level)
					}
				}
			}
		}
	}
}

func TestPredict_Idempotent(t *testing.T) {
	p := newTestPredictor(&fakeStats{spWins: 4, spTotal: 9, coop: 2, custWins: 1, simWins: 1, simTotal: 4})
	in := contracts.PredictionInput{
		Scores:           contracts.DimensionScores{RequirementMaturity: 72, TechnicalFeasibility: 55, BusinessFeasibility: 64, DeliveryRisk: 48, CustomerRelationship: 81},
		SalespersonID:    5,
		CustomerName:     "Hanil Steel",
		CompetitorCount:  intPtr(2),
		EstimatedAmount:  dec(750_000),
		ProductMatchType: contracts.ProductAdvantage,
	}

	first, err := p.Predict(context.Background(), in)
	require.NoError(t, err)
	second, err := p.Predict(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRecommendations(t *testing.T) {
	t.Run("strong deal", func(t *testing.T) {
		recs := Recommendations(uniform(90), 0.6, 1, contracts.ProductAdvantage, 0.85)
		assert.Equal(t, []string{msgAdvantage, fmt.Sprintf(msgPriority, 85.0)}, recs)
	})

	t.Run("middle of the road", func(t *testing.T) {
		recs := Recommendations(uniform(60), 0.30, 3, "", 0.40)
		assert.Equal(t, []string{
			fmt.Sprintf(msgCoaching, 30.0),
			fmt.Sprintf(msgCompetitive, 3),
			fmt.Sprintf(msgFocus, 40.0),
		}, recs)
	})

	t.Run("nothing to say", func(t *testing.T) {
		assert.Empty(t, Recommendations(uniform(70), 0.5, 2, "", 0.6))
	})
}

func TestBatchPredict(t *testing.T) {
	p := newTestPredictor(&fakeStats{spWins: 5, spTotal: 10})

	leads := []contracts.LeadInput{
		{LeadID: 101, PredictionInput: contracts.PredictionInput{Scores: uniform(70)}},
		{LeadID: 102, PredictionInput: contracts.PredictionInput{Scores: contracts.DimensionScores{TechnicalFeasibility: 150}}},
		{LeadID: 103, PredictionInput: contracts.PredictionInput{Scores: uniform(30)}},
	}

	items := p.BatchPredict(context.Background(), leads)

	require.Len(t, items, 3)
	assert.Equal(t, int64(101), items[0].LeadID)
	assert.False(t, items[0].Failed())
	require.NotNil(t, items[0].Result)

	assert.Equal(t, int64(102), items[1].LeadID)
	assert.True(t, items[1].Failed())
	assert.Nil(t, items[1].Result)
	assert.Contains(t, items[1].Error, "technical_feasibility")

	assert.Equal(t, int64(103), items[2].LeadID)
	assert.False(t, items[2].Failed())

	single, err := p.Predict(context.Background(), leads[0].PredictionInput)
	require.NoError(t, err)
	assert.Equal(t, single, items[0].Result)
}

func TestBatchPredictParallel_MatchesSequential(t *testing.T) {
	p := newTestPredictor(&fakeStats{spWins: 2, spTotal: 7, simWins: 1, simTotal: 2})

	leads := make([]contracts.LeadInput, 40)
	for i := range leads {
		leads[i] = contracts.LeadInput{
			LeadID:          int64(i + 1),
			PredictionInput: contracts.PredictionInput{Scores: uniform(float64(i * 3)), CompetitorCount: intPtr(i % 7)},
		}
	}

	assert.Equal(t, p.BatchPredict(context.Background(), leads), p.BatchPredictParallel(context.Background(), leads, 8))
	assert.Empty(t, p.BatchPredict(context.Background(), nil))
}
