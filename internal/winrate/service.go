package winrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/internal/qualitative"
	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/redis"
)

// Event types published by the service
const (
	EventPredictionCreated = "prediction.created"
	EventOutcomeGraded     = "outcome.graded"
)

// Publisher receives domain events (e.g. the websocket hub)
type Publisher interface {
	Publish(eventType string, payload interface{})
}

// Analyzer produces the qualitative report; it never fails
type Analyzer interface {
	Analyze(ctx context.Context, in qualitative.AnalysisInput) *contracts.QualitativeReport
}

// ReportCache 정확도 리포트 캐시 (*redis.Cache 가 구현)
type ReportCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// RecordRequest 예측 + 저장 요청
type RecordRequest struct {
	Input       contracts.PredictionInput
	CreatedBy   string
	Qualitative bool // 정성 분석 포함 여부
}

// Service 예측/채점 유스케이스 조합
// ⭐ SSOT: API, CLI, 스케줄러는 모두 이 서비스를 통해서만 예측/채점
type Service struct {
	predictor    *Predictor
	grader       *Grader
	store        Store
	analyzer     Analyzer
	cache        ReportCache
	publisher    Publisher
	modelVersion string
	log          zerolog.Logger
}

// NewService wires the prediction engine. analyzer and cache may be nil.
func NewService(store Store, analyzer Analyzer, cache ReportCache, cfg config.PredictionConfig, log zerolog.Logger) *Service {
	stats := NewHistoryStats(store, cfg, log)

	version := cfg.ModelVersion
	if version == "" {
		version = "weighted-factor-v1"
	}

	return &Service{
		predictor:    NewPredictor(stats, log),
		grader:       NewGrader(store, log),
		store:        store,
		analyzer:     analyzer,
		cache:        cache,
		modelVersion: version,
		log:          log.With().Str("component", "winrate.service").Logger(),
	}
}

// SetPublisher attaches an event publisher
func (s *Service) SetPublisher(p Publisher) {
	s.publisher = p
}

// Predictor returns the underlying predictor
func (s *Service) Predictor() *Predictor {
	return s.predictor
}

// Grader returns the underlying grader
func (s *Service) Grader() *Grader {
	return s.grader
}

// Preview 예측만 수행 (저장 안함)
func (s *Service) Preview(ctx context.Context, in contracts.PredictionInput) (*contracts.PredictionResult, error) {
	return s.predictor.Predict(ctx, in)
}

// PredictAndRecord 예측 → (선택) 정성 분석 → 예측 + PENDING 이력 저장
func (s *Service) PredictAndRecord(ctx context.Context, req RecordRequest) (*contracts.Prediction, error) {
	in := req.Input
	if in.OpportunityID <= 0 {
		return nil, contracts.NewValidationError("opportunity_id", "must be positive")
	}

	res, err := s.predictor.Predict(ctx, in)
	if err != nil {
		return nil, err
	}

	var report *contracts.QualitativeReport
	if req.Qualitative {
		report = s.analyze(ctx, qualitative.NewAnalysisInput(in, res))
	}

	p := &contracts.Prediction{
		OpportunityID:    in.OpportunityID,
		PredictedWinRate: res.Percent(),
		Level:            res.Level,
		Confidence:       res.Confidence,
		Factors:          res.Factors,
		Recommendations:  res.Recommendations,
		Qualitative:      report,
		ModelID:          s.modelVersion + report.ModelSuffix(),
		CreatedBy:        req.CreatedBy,
	}

	if _, err := s.store.RecordPrediction(ctx, p, FeatureSnapshot(in, res)); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("prediction_id", p.ID).
		Int64("opportunity_id", p.OpportunityID).
		Float64("predicted_win_rate", p.PredictedWinRate).
		Str("level", string(p.Level)).
		Str("model_id", p.ModelID).
		Msg("prediction recorded")

	s.publish(EventPredictionCreated, p)
	return p, nil
}

// BatchPredict 일괄 예측 (저장 안함)
func (s *Service) BatchPredict(ctx context.Context, leads []contracts.LeadInput, workers int) []contracts.BatchItem {
	if workers <= 1 {
		return s.predictor.BatchPredict(ctx, leads)
	}
	return s.predictor.BatchPredictParallel(ctx, leads, workers)
}

// Analyze 예측 후 정성 분석만 반환
func (s *Service) Analyze(ctx context.Context, in contracts.PredictionInput) (*contracts.QualitativeReport, error) {
	res, err := s.predictor.Predict(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.analyze(ctx, qualitative.NewAnalysisInput(in, res)), nil
}

func (s *Service) analyze(ctx context.Context, in qualitative.AnalysisInput) *contracts.QualitativeReport {
	if s.analyzer == nil {
		return qualitative.Fallback(in, qualitative.ErrDisabled.Error())
	}
	return s.analyzer.Analyze(ctx, in)
}

// GetPrediction 예측 단건 조회
func (s *Service) GetPrediction(ctx context.Context, id int64) (*contracts.Prediction, error) {
	return s.store.GetPrediction(ctx, id)
}

// ListPredictions 영업기회별 예측 목록
func (s *Service) ListPredictions(ctx context.Context, opportunityID int64, limit int) ([]contracts.Prediction, error) {
	return s.store.ListPredictions(ctx, opportunityID, limit)
}

// Grade 실제 결과 기록 후 정확도 캐시 무효화
func (s *Service) Grade(ctx context.Context, req GradeRequest) (*contracts.OutcomeHistoryRecord, error) {
	rec, err := s.grader.UpdateActualResult(ctx, req)
	if err != nil {
		return nil, err
	}

	s.invalidateAccuracy(ctx)
	s.publish(EventOutcomeGraded, rec)
	return rec, nil
}

// InsertHistoryBatch 과거 이력 저장 후 정확도 캐시 무효화 (importer 가 사용)
func (s *Service) InsertHistoryBatch(ctx context.Context, records []contracts.OutcomeHistoryRecord) (int, error) {
	n, err := s.store.InsertHistoryBatch(ctx, records)
	if n > 0 {
		s.invalidateAccuracy(ctx)
	}
	return n, err
}

// Accuracy 정확도 요약 (캐시)
func (s *Service) Accuracy(ctx context.Context) (*contracts.AccuracySummary, error) {
	if s.cache == nil {
		return s.grader.GetModelAccuracy(ctx)
	}

	var summary contracts.AccuracySummary
	err := s.cache.GetOrSet(ctx, redis.AccuracySummaryKey(), &summary, redis.TTLMedium, func() (interface{}, error) {
		return s.grader.GetModelAccuracy(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Distribution 등급별 분포 (캐시)
func (s *Service) Distribution(ctx context.Context, start, end *time.Time) (*contracts.WinRateDistribution, error) {
	filter := RecordFilter{Start: start, End: end}
	if s.cache == nil {
		return s.grader.GetWinRateDistribution(ctx, filter)
	}

	var dist contracts.WinRateDistribution
	key := redis.DistributionKey(dateKey(start), dateKey(end))
	err := s.cache.GetOrSet(ctx, key, &dist, redis.TTLMedium, func() (interface{}, error) {
		return s.grader.GetWinRateDistribution(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return &dist, nil
}

// Validation 기간 검증 리포트 (캐시)
func (s *Service) Validation(ctx context.Context, lookbackMonths int) (*contracts.ValidationReport, error) {
	if s.cache == nil || lookbackMonths <= 0 {
		return s.grader.ValidateModelAccuracy(ctx, lookbackMonths)
	}

	var report contracts.ValidationReport
	err := s.cache.GetOrSet(ctx, redis.ValidationKey(lookbackMonths), &report, redis.TTLLong, func() (interface{}, error) {
		return s.grader.ValidateModelAccuracy(ctx, lookbackMonths)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) invalidateAccuracy(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.DeletePattern(ctx, redis.AccuracyPattern()); err != nil {
		s.log.Warn().Err(err).Msg("failed to invalidate accuracy cache")
	}
}

func (s *Service) publish(eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(eventType, payload)
}

func dateKey(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return fmt.Sprintf("%d", t.Unix())
}
