package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/logger"
)

// BrierWarnThreshold 이 값을 넘으면 모델 품질 경고 (무작위 0.5 예측의 Brier = 0.25)
const BrierWarnThreshold = 0.25

// AccuracyValidator computes the lookback validation report
type AccuracyValidator interface {
	ValidateModelAccuracy(ctx context.Context, lookbackMonths int) (*contracts.ValidationReport, error)
}

// AccuracyValidationJob validates recent predictions against graded outcomes
type AccuracyValidationJob struct {
	validator AccuracyValidator
	schedule  string
	months    int
	logger    *logger.Logger

	mu   sync.Mutex
	last *contracts.ValidationReport
}

// NewAccuracyValidationJob creates the job from the scheduler config
func NewAccuracyValidationJob(validator AccuracyValidator, cfg config.SchedulerConfig, log *logger.Logger) *AccuracyValidationJob {
	schedule := cfg.AccuracyCron
	if schedule == "" {
		schedule = "0 0 6 * * *"
	}
	months := cfg.AccuracyLookbackMonths
	if months <= 0 {
		months = 6
	}
	return &AccuracyValidationJob{
		validator: validator,
		schedule:  schedule,
		months:    months,
		logger:    log,
	}
}

// Name returns the job name
func (j *AccuracyValidationJob) Name() string {
	return "accuracy_validation"
}

// Schedule returns the cron schedule (daily 06:00 by default)
func (j *AccuracyValidationJob) Schedule() string {
	return j.schedule
}

// Run executes the validation
func (j *AccuracyValidationJob) Run(ctx context.Context) error {
	report, err := j.validator.ValidateModelAccuracy(ctx, j.months)
	if err != nil {
		return fmt.Errorf("validate model accuracy: %w", err)
	}

	j.mu.Lock()
	j.last = report
	j.mu.Unlock()

	log := j.logger.WithFields(map[string]interface{}{
		"lookback_months": report.LookbackMonths,
		"sample_size":     report.SampleSize,
		"accuracy":        report.Accuracy,
		"brier_score":     report.BrierScore,
	})

	switch {
	case !report.Sufficient():
		log.Info("Accuracy validation skipped: no graded predictions")
	case report.BrierScore > BrierWarnThreshold:
		log.Warn("Model calibration degraded")
	default:
		log.Info("Accuracy validation completed")
	}

	return nil
}

// LastReport returns the report from the most recent successful run
func (j *AccuracyValidationJob) LastReport() *contracts.ValidationReport {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
