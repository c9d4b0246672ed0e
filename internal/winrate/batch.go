package winrate

import (
	"context"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/pkg/partial"
)

// BatchPredict 일괄 예측
// 항목별 실패는 같은 위치에 {lead_id, error} 로 기록, 배치는 중단되지 않음
func (p *Predictor) BatchPredict(ctx context.Context, leads []contracts.LeadInput) []contracts.BatchItem {
	return p.BatchPredictParallel(ctx, leads, 1)
}

// BatchPredictParallel is BatchPredict over a bounded worker pool.
// Results are identical to BatchPredict.
func (p *Predictor) BatchPredictParallel(ctx context.Context, leads []contracts.LeadInput, workers int) []contracts.BatchItem {
	results := partial.CollectParallel(ctx, leads, workers,
		func(ctx context.Context, _ int, lead contracts.LeadInput) (*contracts.PredictionResult, error) {
			return p.Predict(ctx, lead.PredictionInput)
		},
	)

	items := make([]contracts.BatchItem, len(results))
	failed := 0
	for i, r := range results {
		items[i] = contracts.BatchItem{LeadID: leads[i].LeadID}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
			failed++
			continue
		}
		items[i].Result = r.Value
	}

	p.log.Info().
		Int("total", len(items)).
		Int("failed", failed).
		Int("workers", workers).
		Msg("batch prediction completed")

	return items
}
