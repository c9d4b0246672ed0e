package jobs

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/logger"
)

type stubValidator struct {
	report *contracts.ValidationReport
	err    error
	months int
}

func (v *stubValidator) ValidateModelAccuracy(_ context.Context, months int) (*contracts.ValidationReport, error) {
	v.months = months
	return v.report, v.err
}

func testLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.NewWithWriter(&config.Config{LogLevel: "debug", Env: "test"}, buf)
}

func TestAccuracyValidationJob_Defaults(t *testing.T) {
	job := NewAccuracyValidationJob(&stubValidator{}, config.SchedulerConfig{}, logger.Nop())

	assert.Equal(t, "accuracy_validation", job.Name())
	assert.Equal(t, "0 0 6 * * *", job.Schedule())
	assert.Equal(t, 6, job.months)
}

func TestAccuracyValidationJob_Run(t *testing.T) {
	tests := []struct {
		name    string
		report  *contracts.ValidationReport
		wantLog string
	}{
		{
			name:    "calibrated",
			report:  &contracts.ValidationReport{Status: contracts.ValidationStatusOK, SampleSize: 40, Accuracy: 0.8, BrierScore: 0.12},
			wantLog: "Accuracy validation completed",
		},
		{
			name:    "degraded",
			report:  &contracts.ValidationReport{Status: contracts.ValidationStatusOK, SampleSize: 40, Accuracy: 0.4, BrierScore: 0.31},
			wantLog: "Model calibration degraded",
		},
		{
			name:    "no data",
			report:  &contracts.ValidationReport{Status: contracts.ValidationStatusInsufficientData},
			wantLog: "no graded predictions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			v := &stubValidator{report: tt.report}
			job := NewAccuracyValidationJob(v, config.SchedulerConfig{AccuracyLookbackMonths: 3}, testLogger(&buf))

			require.NoError(t, job.Run(context.Background()))
			assert.Equal(t, 3, v.months)
			assert.Same(t, tt.report, job.LastReport())
			assert.Contains(t, buf.String(), tt.wantLog)
		})
	}
}

func TestAccuracyValidationJob_RunError(t *testing.T) {
	job := NewAccuracyValidationJob(&stubValidator{err: errors.New("db down")}, config.SchedulerConfig{}, logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Nil(t, job.LastReport())
}
