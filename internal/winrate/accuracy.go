package winrate

import (
	"context"
	"fmt"

	"github.com/wonny/winrate/internal/contracts"
)

// GetModelAccuracy 채점 완료 레코드 기준 정확도 요약
// 레코드가 없으면 0 으로 채운 요약을 반환
func (g *Grader) GetModelAccuracy(ctx context.Context) (*contracts.AccuracySummary, error) {
	records, err := g.store.HistoryRecords(ctx, RecordFilter{GradedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("load graded records: %w", err)
	}

	return SummarizeAccuracy(records), nil
}

// SummarizeAccuracy aggregates graded records; PENDING records are skipped
func SummarizeAccuracy(records []contracts.OutcomeHistoryRecord) *contracts.AccuracySummary {
	summary := &contracts.AccuracySummary{
		ByResult: make(map[contracts.ActualResult]contracts.ResultBreakdown),
	}

	type acc struct {
		count             int
		sumPred, sumError float64
	}
	byResult := make(map[contracts.ActualResult]*acc)
	sumError := 0.0

	for _, rec := range records {
		if !rec.ActualResult.IsGraded() {
			continue
		}

		predErr, correct := gradeOf(rec)
		summary.Total++
		if correct {
			summary.Correct++
		}
		sumError += predErr

		a, ok := byResult[rec.ActualResult]
		if !ok {
			a = &acc{}
			byResult[rec.ActualResult] = a
		}
		a.count++
		a.sumPred += rec.PredictedWinRate
		a.sumError += predErr
	}

	if summary.Total == 0 {
		return summary
	}

	summary.OverallAccuracy = round(float64(summary.Correct)/float64(summary.Total)*100, 2)
	summary.AverageError = round(sumError/float64(summary.Total), 2)
	for result, a := range byResult {
		summary.ByResult[result] = contracts.ResultBreakdown{
			Count:        a.count,
			AvgPredicted: round(a.sumPred/float64(a.count), 2),
			AvgError:     round(a.sumError/float64(a.count), 2),
		}
	}

	return summary
}

// GetWinRateDistribution 저장된 예측 승률을 5단계로 나눈 실제 승률 분포
// 재계산하지 않고 저장값을 그대로 사용
func (g *Grader) GetWinRateDistribution(ctx context.Context, filter RecordFilter) (*contracts.WinRateDistribution, error) {
	filter.GradedOnly = true
	records, err := g.store.HistoryRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load graded records: %w", err)
	}

	dist := Distribute(records)
	dist.Start = filter.Start
	dist.End = filter.End
	return dist, nil
}

// Distribute buckets graded records by the level of their stored predicted rate
func Distribute(records []contracts.OutcomeHistoryRecord) *contracts.WinRateDistribution {
	counts := make(map[contracts.ProbabilityLevel]*contracts.DistributionBucket, len(contracts.ProbabilityLevels))
	for _, level := range contracts.ProbabilityLevels {
		counts[level] = &contracts.DistributionBucket{Level: level}
	}

	dist := &contracts.WinRateDistribution{}
	for _, rec := range records {
		if !rec.ActualResult.IsGraded() {
			continue
		}
		b := counts[contracts.ClassifyProbability(rec.PredictedWinRate/100)]
		b.Count++
		if rec.ActualResult == contracts.ResultWon {
			b.Won++
		}
		dist.Total++
	}

	dist.Buckets = make([]contracts.DistributionBucket, 0, len(contracts.ProbabilityLevels))
	for _, level := range contracts.ProbabilityLevels {
		b := counts[level]
		if b.Count > 0 {
			b.ActualWinRate = round(float64(b.Won)/float64(b.Count), 4)
		}
		dist.Buckets = append(dist.Buckets, *b)
	}

	return dist
}

// ValidateModelAccuracy 최근 N개월 이진 정확도와 Brier score
// 대상 레코드가 없으면 insufficient_data 상태로 반환 (에러 아님)
func (g *Grader) ValidateModelAccuracy(ctx context.Context, lookbackMonths int) (*contracts.ValidationReport, error) {
	if lookbackMonths <= 0 {
		return nil, contracts.NewValidationError("lookback_months", "must be positive (got %d)", lookbackMonths)
	}

	since := g.now().AddDate(0, -lookbackMonths, 0)
	records, err := g.store.HistoryRecords(ctx, RecordFilter{Start: &since, GradedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("load graded records: %w", err)
	}

	report := Validate(records)
	report.LookbackMonths = lookbackMonths
	report.Since = since

	g.log.Info().
		Int("lookback_months", lookbackMonths).
		Str("status", report.Status).
		Int("sample_size", report.SampleSize).
		Float64("accuracy", report.Accuracy).
		Float64("brier_score", report.BrierScore).
		Msg("model accuracy validated")

	return report, nil
}

// Validate computes binary accuracy and Brier score over graded records
func Validate(records []contracts.OutcomeHistoryRecord) *contracts.ValidationReport {
	report := &contracts.ValidationReport{}

	correct := 0
	sqErr := 0.0
	for _, rec := range records {
		if !rec.ActualResult.IsGraded() {
			continue
		}

		p := clamp(rec.PredictedWinRate/100, 0, 1)
		actual := 0.0
		if rec.ActualResult == contracts.ResultWon {
			actual = 1
		}
		if (p >= 0.5) == (actual == 1) {
			correct++
		}
		sqErr += (p - actual) * (p - actual)
		report.SampleSize++
	}

	if report.SampleSize == 0 {
		report.Status = contracts.ValidationStatusInsufficientData
		report.Message = "no graded predictions in the lookback window"
		return report
	}

	report.Status = contracts.ValidationStatusOK
	report.Accuracy = round(float64(correct)/float64(report.SampleSize), 4)
	report.BrierScore = round(sqErr/float64(report.SampleSize), 4)
	return report
}

// gradeOf returns the stored error/correctness, computing them when absent (e.g. legacy imports)
func gradeOf(rec contracts.OutcomeHistoryRecord) (float64, bool) {
	predErr, correct, _ := contracts.Grade(rec.PredictedWinRate, rec.ActualResult)
	if rec.PredictionError != nil {
		predErr = *rec.PredictionError
	}
	if rec.IsCorrect != nil {
		correct = *rec.IsCorrect
	}
	return predErr, correct
}
