package winrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/pkg/database"
)

// Repository 승률 예측 PostgreSQL 저장소
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalespersonOutcomes 영업담당자 종료 건수/수주 건수
func (r *Repository) SalespersonOutcomes(ctx context.Context, salespersonID int64, since time.Time) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE outcome = 'WON'),
			COUNT(*)
		FROM sales.opportunities
		WHERE salesperson_id = $1
		  AND outcome IN ('WON', 'LOST')
		  AND created_at >= $2`

	var wins, total int
	if err := r.pool.QueryRow(ctx, query, salespersonID, since).Scan(&wins, &total); err != nil {
		return 0, 0, fmt.Errorf("salesperson outcomes: %w", err)
	}
	return wins, total, nil
}

// CustomerOutcomes 고객 협력 건수/수주 건수 (ID 우선, 없으면 이름)
func (r *Repository) CustomerOutcomes(ctx context.Context, customerID *int64, customerName string) (int, int, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'WON')
		FROM sales.opportunities
		WHERE outcome IN ('WON', 'LOST')`

	var arg interface{}
	if customerID != nil {
		query += ` AND customer_id = $1`
		arg = *customerID
	} else {
		query += ` AND LOWER(customer_name) = LOWER($1)`
		arg = customerName
	}

	var coop, wins int
	if err := r.pool.QueryRow(ctx, query, arg).Scan(&coop, &wins); err != nil {
		return 0, 0, fmt.Errorf("customer outcomes: %w", err)
	}
	return coop, wins, nil
}

// SimilarOutcomes 평가 점수 구간 내 종료 건수/수주 건수
func (r *Repository) SimilarOutcomes(ctx context.Context, minScore, maxScore float64) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE outcome = 'WON'),
			COUNT(*)
		FROM sales.opportunities
		WHERE outcome IN ('WON', 'LOST')
		  AND evaluation_score BETWEEN $1 AND $2`

	var wins, total int
	if err := r.pool.QueryRow(ctx, query, minScore, maxScore).Scan(&wins, &total); err != nil {
		return 0, 0, fmt.Errorf("similar outcomes: %w", err)
	}
	return wins, total, nil
}

// RecordPrediction 예측 + PENDING 이력 저장 (단일 트랜잭션)
func (r *Repository) RecordPrediction(ctx context.Context, p *contracts.Prediction, features map[string]interface{}) (*contracts.OutcomeHistoryRecord, error) {
	factorsJSON, err := json.Marshal(p.Factors)
	if err != nil {
		return nil, fmt.Errorf("marshal factors: %w", err)
	}
	recsJSON, err := json.Marshal(nonNilStrings(p.Recommendations))
	if err != nil {
		return nil, fmt.Errorf("marshal recommendations: %w", err)
	}
	var qualJSON []byte
	if p.Qualitative != nil {
		if qualJSON, err = json.Marshal(p.Qualitative); err != nil {
			return nil, fmt.Errorf("marshal qualitative: %w", err)
		}
	}
	if features == nil {
		features = map[string]interface{}{}
	}
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}

	rec := &contracts.OutcomeHistoryRecord{
		OpportunityID:    p.OpportunityID,
		PredictedWinRate: p.PredictedWinRate,
		ActualResult:     contracts.ResultPending,
		Features:         features,
	}

	err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM sales.opportunities WHERE id = $1)`, p.OpportunityID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check opportunity: %w", err)
		}
		if !exists {
			return contracts.NewNotFoundError("opportunity", p.OpportunityID)
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO sales.win_rate_predictions
				(opportunity_id, predicted_win_rate, probability_level, confidence,
				 factors, recommendations, qualitative, model_id, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at`,
			p.OpportunityID, p.PredictedWinRate, string(p.Level), p.Confidence,
			factorsJSON, recsJSON, qualJSON, p.ModelID, p.CreatedBy,
		).Scan(&p.ID, &p.CreatedAt); err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}

		predID := p.ID
		rec.PredictionID = &predID
		if err := tx.QueryRow(ctx, `
			INSERT INTO sales.win_rate_history
				(opportunity_id, prediction_id, predicted_win_rate, actual_result, features, created_at)
			VALUES ($1, $2, $3, 'PENDING', $4, $5)
			RETURNING id`,
			p.OpportunityID, p.ID, p.PredictedWinRate, featuresJSON, p.CreatedAt,
		).Scan(&rec.ID); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
		rec.CreatedAt = p.CreatedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

const predictionColumns = `
	id, opportunity_id, predicted_win_rate, probability_level, confidence,
	factors, recommendations, qualitative, model_id, created_by, created_at`

// GetPrediction 예측 단건 조회
func (r *Repository) GetPrediction(ctx context.Context, id int64) (*contracts.Prediction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+predictionColumns+` FROM sales.win_rate_predictions WHERE id = $1`, id)

	p, err := scanPrediction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, contracts.NewNotFoundError("prediction", id)
		}
		return nil, fmt.Errorf("get prediction: %w", err)
	}
	return p, nil
}

// ListPredictions 영업기회별 예측 목록 (최신순)
func (r *Repository) ListPredictions(ctx context.Context, opportunityID int64, limit int) ([]contracts.Prediction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+predictionColumns+`
		FROM sales.win_rate_predictions
		WHERE opportunity_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, opportunityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var result []contracts.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}

const historyColumns = `
	id, opportunity_id, prediction_id, predicted_win_rate, actual_result, result_date,
	features, prediction_error, is_correct, graded_at, graded_by, created_at`

// UpdateLatestOutcome 최신 이력 레코드 잠금 → 변경 → 저장 + 영업기회 outcome 갱신 (단일 트랜잭션)
func (r *Repository) UpdateLatestOutcome(ctx context.Context, opportunityID int64, apply func(rec *contracts.OutcomeHistoryRecord) error) (*contracts.OutcomeHistoryRecord, error) {
	var rec *contracts.OutcomeHistoryRecord

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+historyColumns+`
			FROM sales.win_rate_history
			WHERE opportunity_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
			FOR UPDATE`, opportunityID)

		var err error
		rec, err = scanHistory(row)
		if err != nil {
			if isNotFoundError(err) {
				return contracts.NewNotFoundError("win_rate_history", opportunityID)
			}
			return fmt.Errorf("select latest history: %w", err)
		}

		if err := apply(rec); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE sales.win_rate_history
			SET actual_result = $2,
				result_date = $3,
				prediction_error = $4,
				is_correct = $5,
				graded_at = $6,
				graded_by = $7
			WHERE id = $1`,
			rec.ID, string(rec.ActualResult), rec.ResultDate, rec.PredictionError,
			rec.IsCorrect, rec.GradedAt, rec.GradedBy,
		); err != nil {
			return fmt.Errorf("update history: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE sales.opportunities
			SET outcome = $2, closed_at = $3
			WHERE id = $1`,
			opportunityID, outcomeFor(rec.ActualResult), rec.ResultDate,
		); err != nil {
			return fmt.Errorf("update opportunity outcome: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// HistoryRecords 조건별 이력 조회 (오래된 순)
func (r *Repository) HistoryRecords(ctx context.Context, filter RecordFilter) ([]contracts.OutcomeHistoryRecord, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.GradedOnly {
		conds = append(conds, `actual_result IN ('WON', 'LOST')`)
	}
	if filter.Start != nil {
		args = append(args, *filter.Start)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.End != nil {
		args = append(args, *filter.End)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT ` + historyColumns + ` FROM sales.win_rate_history`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var result []contracts.OutcomeHistoryRecord
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		result = append(result, *rec)
	}

	return result, rows.Err()
}

// InsertHistoryBatch 이력 일괄 저장 (pgx.Batch)
// 전부 저장되거나 하나도 저장되지 않음: 오류 시 0 반환
func (r *Repository) InsertHistoryBatch(ctx context.Context, records []contracts.OutcomeHistoryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO sales.win_rate_history
			(opportunity_id, predicted_win_rate, actual_result, result_date, features,
			 prediction_error, is_correct, graded_at, graded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))`

	batch := &pgx.Batch{}
	for _, rec := range records {
		features := rec.Features
		if features == nil {
			features = map[string]interface{}{}
		}
		featuresJSON, err := json.Marshal(features)
		if err != nil {
			return 0, fmt.Errorf("marshal features for opportunity %d: %w", rec.OpportunityID, err)
		}

		var createdAt *time.Time
		if !rec.CreatedAt.IsZero() {
			t := rec.CreatedAt
			createdAt = &t
		}

		batch.Queue(query,
			rec.OpportunityID, rec.PredictedWinRate, string(rec.ActualResult), rec.ResultDate,
			featuresJSON, rec.PredictionError, rec.IsCorrect, rec.GradedAt, rec.GradedBy, createdAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	// 배치는 하나의 암묵적 트랜잭션: 한 행이라도 실패하면 전체 롤백
	for i := range records {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("insert history batch (row %d of %d): %w", i+1, len(records), err)
		}
	}

	return len(records), nil
}

// scanPrediction scans a prediction row from QueryRow or Rows
func scanPrediction(row pgx.Row) (*contracts.Prediction, error) {
	var (
		p                           contracts.Prediction
		level                       string
		factorsJSON, recsJSON, qual []byte
	)
	if err := row.Scan(
		&p.ID, &p.OpportunityID, &p.PredictedWinRate, &level, &p.Confidence,
		&factorsJSON, &recsJSON, &qual, &p.ModelID, &p.CreatedBy, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	p.Level = contracts.ProbabilityLevel(level)

	if err := json.Unmarshal(factorsJSON, &p.Factors); err != nil {
		return nil, fmt.Errorf("decode factors: %w", err)
	}
	if err := json.Unmarshal(recsJSON, &p.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if len(qual) > 0 {
		p.Qualitative = &contracts.QualitativeReport{}
		if err := json.Unmarshal(qual, p.Qualitative); err != nil {
			return nil, fmt.Errorf("decode qualitative: %w", err)
		}
	}
	return &p, nil
}

// scanHistory scans a history row from QueryRow or Rows
func scanHistory(row pgx.Row) (*contracts.OutcomeHistoryRecord, error) {
	var (
		rec          contracts.OutcomeHistoryRecord
		result       string
		featuresJSON []byte
	)
	if err := row.Scan(
		&rec.ID, &rec.OpportunityID, &rec.PredictionID, &rec.PredictedWinRate, &result, &rec.ResultDate,
		&featuresJSON, &rec.PredictionError, &rec.IsCorrect, &rec.GradedAt, &rec.GradedBy, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.ActualResult = contracts.ActualResult(result)

	if len(featuresJSON) > 0 {
		if err := json.Unmarshal(featuresJSON, &rec.Features); err != nil {
			return nil, fmt.Errorf("decode features: %w", err)
		}
	}
	return &rec, nil
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
