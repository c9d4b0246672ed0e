package winrate

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/winrate/pkg/config"
)

// StatsStore 과거 영업기회 결과 집계 조회 (읽기 전용)
type StatsStore interface {
	// SalespersonOutcomes counts closed (WON/LOST) opportunities created since the given time
	SalespersonOutcomes(ctx context.Context, salespersonID int64, since time.Time) (wins, total int, err error)
	// CustomerOutcomes counts closed opportunities by customer id, or by name (case-insensitive) when id is nil
	CustomerOutcomes(ctx context.Context, customerID *int64, customerName string) (cooperations, wins int, err error)
	// SimilarOutcomes counts closed opportunities whose evaluation score is within [minScore, maxScore]
	SimilarOutcomes(ctx context.Context, minScore, maxScore float64) (wins, total int, err error)
}

// SalespersonStats 영업담당자 승률
type SalespersonStats struct {
	WinRate    float64
	SampleSize int
}

// CustomerStats 고객 협력 이력
type CustomerStats struct {
	Cooperations int
	Wins         int
}

// SimilarLeadsStats 유사 점수대 영업기회 통계 (보고용)
type SimilarLeadsStats struct {
	Count   int
	WinRate float64
}

// HistoryStats 과거 통계 제공자
// 조회 실패는 로그만 남기고 기본값으로 대체 (예측은 항상 숫자를 반환해야 함)
type HistoryStats struct {
	store          StatsStore
	lookbackMonths int
	tolerance      float64
	now            func() time.Time
	log            zerolog.Logger
}

// NewHistoryStats creates a stats provider using prediction settings from cfg
func NewHistoryStats(store StatsStore, cfg config.PredictionConfig, log zerolog.Logger) *HistoryStats {
	lookback := cfg.LookbackMonths
	if lookback <= 0 {
		lookback = 24
	}
	tolerance := cfg.SimilarTolerance
	if tolerance <= 0 {
		tolerance = 10
	}

	return &HistoryStats{
		store:          store,
		lookbackMonths: lookback,
		tolerance:      tolerance,
		now:            time.Now,
		log:            log.With().Str("component", "winrate.stats").Logger(),
	}
}

// SalespersonWinRate 조회 기간 내 영업담당자 승률
// 데이터 없으면 (0.20, 0)
func (h *HistoryStats) SalespersonWinRate(ctx context.Context, salespersonID int64) SalespersonStats {
	since := h.now().AddDate(0, -h.lookbackMonths, 0)

	wins, total, err := h.store.SalespersonOutcomes(ctx, salespersonID, since)
	if err != nil {
		h.log.Warn().Err(err).
			Int64("salesperson_id", salespersonID).
			Msg("salesperson stats lookup failed, using default")
		return SalespersonStats{WinRate: DefaultSalespersonWinRate}
	}
	if total == 0 {
		return SalespersonStats{WinRate: DefaultSalespersonWinRate}
	}

	return SalespersonStats{
		WinRate:    float64(wins) / float64(total),
		SampleSize: total,
	}
}

// CustomerCooperation 고객 협력 횟수/수주 횟수
// ID 우선, 없으면 이름으로 조회. 식별 불가 시 (0, 0)
func (h *HistoryStats) CustomerCooperation(ctx context.Context, customerID *int64, customerName string) CustomerStats {
	name := strings.TrimSpace(customerName)
	if customerID == nil && name == "" {
		return CustomerStats{}
	}

	coop, wins, err := h.store.CustomerOutcomes(ctx, customerID, name)
	if err != nil {
		h.log.Warn().Err(err).
			Str("customer_name", name).
			Msg("customer stats lookup failed, using default")
		return CustomerStats{}
	}

	return CustomerStats{Cooperations: coop, Wins: wins}
}

// SimilarLeads 현재 종합점수 ±tolerance 범위의 종료된 영업기회 통계
func (h *HistoryStats) SimilarLeads(ctx context.Context, totalScore float64) SimilarLeadsStats {
	wins, total, err := h.store.SimilarOutcomes(ctx, totalScore-h.tolerance, totalScore+h.tolerance)
	if err != nil {
		h.log.Warn().Err(err).
			Float64("total_score", totalScore).
			Msg("similar leads lookup failed")
		return SimilarLeadsStats{}
	}
	if total == 0 {
		return SimilarLeadsStats{}
	}

	return SimilarLeadsStats{
		Count:   total,
		WinRate: float64(wins) / float64(total),
	}
}
