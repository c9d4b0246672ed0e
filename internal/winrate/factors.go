package winrate

import (
	"github.com/shopspring/decimal"

	"github.com/wonny/winrate/internal/contracts"
)

// DefaultSalespersonWinRate 이력 없는 영업담당자의 기본 승률
const DefaultSalespersonWinRate = 0.20

// 금액 구간 경계
var (
	amount100K = decimal.NewFromInt(100_000)
	amount500K = decimal.NewFromInt(500_000)
	amount1M   = decimal.NewFromInt(1_000_000)
	amount5M   = decimal.NewFromInt(5_000_000)
)

// SalespersonFactor 영업담당자 승률 계수 (0.5 ~ 1.0)
func SalespersonFactor(winRate float64) float64 {
	return 0.5 + clamp(winRate, 0, 1)*0.5
}

// CustomerFactor 고객 협력 이력 계수
// 첫 번째로 만족하는 구간만 적용 (누적 없음)
func CustomerFactor(cooperations, wins int, isRepeatCustomer bool) float64 {
	switch {
	case cooperations >= 5 && wins >= 3:
		return 1.30
	case cooperations >= 3 && wins >= 2:
		return 1.20
	case cooperations >= 1:
		return 1.10
	case isRepeatCustomer:
		return 1.05
	default:
		return 1.0
	}
}

// CompetitorFactor 경쟁사 수 계수 (경쟁사가 많을수록 감소)
func CompetitorFactor(competitors int) float64 {
	switch {
	case competitors <= 1:
		return 1.20
	case competitors <= 2:
		return 1.05
	case competitors <= 3:
		return 1.00
	case competitors <= 5:
		return 0.85
	default:
		return 0.70
	}
}

// AmountFactor 예상 금액 계수 (금액이 클수록 감소, 미입력 시 1.0)
func AmountFactor(amount *decimal.Decimal) float64 {
	if amount == nil {
		return 1.0
	}

	switch {
	case amount.LessThan(amount100K):
		return 1.10
	case amount.LessThan(amount500K):
		return 1.05
	case amount.LessThan(amount1M):
		return 1.00
	case amount.LessThan(amount5M):
		return 0.95
	default:
		return 0.90
	}
}

// ProductFactor 제품 적합도 계수
func ProductFactor(matchType string) float64 {
	switch matchType {
	case contracts.ProductAdvantage:
		return 1.15
	case contracts.ProductNew:
		return 0.85
	default:
		return 1.0
	}
}
