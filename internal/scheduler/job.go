package scheduler

import (
	"context"
	"time"
)

// historyLimit 작업별 보관 실행 기록 수
const historyLimit = 100

// Job is a periodic task registered with the scheduler
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run must be safe to retry: a failed run is retried with exponential
	// backoff up to the scheduler's retry budget (WithRetry)
	Run(ctx context.Context) error

	// Schedule returns a cron expression with seconds, e.g. "0 0 6 * * *" (매일 06:00)
	Schedule() string
}

// JobResult records one scheduled or manual execution
// Attempts 는 재시도 포함 실행 횟수 (최대 1 + WithRetry 의 maxRetries)
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"` // 마지막 시도의 오류
}

// JobHistory keeps the latest historyLimit results of one job, oldest first
type JobHistory struct {
	Results []JobResult
}

// AddResult appends result, dropping the oldest beyond historyLimit
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if over := len(h.Results) - historyLimit; over > 0 {
		h.Results = append([]JobResult(nil), h.Results[over:]...)
	}
}

// snapshot copies the history so callers can read it without the scheduler lock
func (h *JobHistory) snapshot() *JobHistory {
	return &JobHistory{Results: append([]JobResult(nil), h.Results...)}
}

// GetLatestResults returns up to n most recent results, oldest first
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns the runs that failed after all retries
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// GetSuccessRate returns the share of successful runs (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}
	return float64(len(h.Results)-len(h.GetFailedResults())) / float64(len(h.Results))
}
