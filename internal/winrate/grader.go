package winrate

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/winrate/internal/contracts"
)

// RecordFilter 이력 조회 조건
type RecordFilter struct {
	Start      *time.Time // created_at >= Start
	End        *time.Time // created_at <= End
	GradedOnly bool       // WON/LOST 만
}

// GradeStore 결과 이력 저장소
type GradeStore interface {
	// UpdateLatestOutcome locks the most recent history record of the opportunity, lets
	// apply mutate it, then persists it together with the opportunity outcome in one transaction.
	// Returns *contracts.NotFoundError when the opportunity has no history.
	UpdateLatestOutcome(ctx context.Context, opportunityID int64, apply func(rec *contracts.OutcomeHistoryRecord) error) (*contracts.OutcomeHistoryRecord, error)

	// HistoryRecords lists history records matching filter, oldest first
	HistoryRecords(ctx context.Context, filter RecordFilter) ([]contracts.OutcomeHistoryRecord, error)
}

// GradeRequest 실제 결과 입력
type GradeRequest struct {
	OpportunityID int64
	Result        contracts.ActualResult
	UpdatedBy     string
	WinDate       *time.Time
	LostDate      *time.Time
}

// Grader 결과 피드백 및 정확도 집계
type Grader struct {
	store GradeStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewGrader 새 채점기 생성
func NewGrader(store GradeStore, log zerolog.Logger) *Grader {
	return &Grader{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "winrate.grader").Logger(),
	}
}

// UpdateActualResult 최신 이력 레코드에 실제 결과 기록
// 같은 영업기회를 다시 채점하면 마지막 기록이 덮어쓴다
func (g *Grader) UpdateActualResult(ctx context.Context, req GradeRequest) (*contracts.OutcomeHistoryRecord, error) {
	if req.OpportunityID <= 0 {
		return nil, contracts.NewValidationError("opportunity_id", "must be positive")
	}
	switch req.Result {
	case contracts.ResultWon, contracts.ResultLost, contracts.ResultPending:
	default:
		return nil, contracts.NewValidationError("actual_result", "must be one of WON, LOST, PENDING (got %q)", req.Result)
	}

	now := g.now()
	rec, err := g.store.UpdateLatestOutcome(ctx, req.OpportunityID, func(rec *contracts.OutcomeHistoryRecord) error {
		ApplyResult(rec, req, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := g.log.Info().
		Int64("opportunity_id", req.OpportunityID).
		Str("actual_result", string(req.Result)).
		Float64("predicted_win_rate", rec.PredictedWinRate).
		Str("graded_by", req.UpdatedBy)
	if rec.PredictionError != nil {
		ev = ev.Float64("prediction_error", *rec.PredictionError)
	}
	ev.Msg("actual result recorded")

	return rec, nil
}

// ApplyResult 이력 레코드에 결과/오차/정답 여부 반영
// PENDING 이면 오차와 정답 여부를 비운다
func ApplyResult(rec *contracts.OutcomeHistoryRecord, req GradeRequest, now time.Time) {
	rec.ActualResult = req.Result
	rec.GradedBy = req.UpdatedBy
	rec.GradedAt = &now

	predErr, correct, ok := contracts.Grade(rec.PredictedWinRate, req.Result)
	if !ok {
		rec.PredictionError = nil
		rec.IsCorrect = nil
		rec.ResultDate = nil
		return
	}

	rec.PredictionError = &predErr
	rec.IsCorrect = &correct

	resultDate := now
	switch {
	case req.Result == contracts.ResultWon && req.WinDate != nil:
		resultDate = *req.WinDate
	case req.Result == contracts.ResultLost && req.LostDate != nil:
		resultDate = *req.LostDate
	}
	rec.ResultDate = &resultDate
}
