package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// accuracyCmd represents the accuracy command
var accuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "정확도 요약",
	RunE:  runAccuracy,
}

// distributionCmd represents the distribution command
var distributionCmd = &cobra.Command{
	Use:   "distribution",
	Short: "확률 등급별 실제 수주율",
	Long: `채점된 예측을 5개 확률 등급으로 나눠 실제 수주율을 보여줍니다.

Example:
  go run ./cmd/winrate distribution --start 2025-01-01 --end 2025-06-30`,
	RunE: runDistribution,
}

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "기간 검증 (정확도 + Brier score)",
	RunE:  runValidate,
}

var (
	reportJSON   bool
	distStart    string
	distEnd      string
	validateMons int
)

func init() {
	rootCmd.AddCommand(accuracyCmd)
	rootCmd.AddCommand(distributionCmd)
	rootCmd.AddCommand(validateCmd)

	for _, c := range []*cobra.Command{accuracyCmd, distributionCmd, validateCmd} {
		c.Flags().BoolVar(&reportJSON, "json", false, "JSON 출력")
	}
	distributionCmd.Flags().StringVar(&distStart, "start", "", "시작일 YYYY-MM-DD")
	distributionCmd.Flags().StringVar(&distEnd, "end", "", "종료일 YYYY-MM-DD (포함)")
	validateCmd.Flags().IntVar(&validateMons, "months", 0, "조회 개월 수 (기본: ACCURACY_LOOKBACK_MONTHS)")
}

func runAccuracy(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.service.Accuracy(context.Background())
	if err != nil {
		return err
	}
	if reportJSON {
		return PrintJSON(summary)
	}

	PrintHeader("Model accuracy")
	PrintKeyValue("Graded", strconv.Itoa(summary.Total), 10)
	PrintKeyValue("Correct", strconv.Itoa(summary.Correct), 10)
	PrintKeyValue("Accuracy", pct(summary.OverallAccuracy), 10)
	PrintKeyValue("Avg error", pct(summary.AverageError), 10)
	PrintSeparator()

	widths := []int{8, 8, 14, 10}
	PrintTableHeader([]string{"RESULT", "COUNT", "AVG PREDICTED", "AVG ERROR"}, widths)
	for result, b := range summary.ByResult {
		PrintTableRow([]string{string(result), strconv.Itoa(b.Count), pct(b.AvgPredicted), pct(b.AvgError)}, widths)
	}
	return nil
}

func runDistribution(cmd *cobra.Command, args []string) error {
	start, err := parseFlagDate("--start", distStart)
	if err != nil {
		return err
	}
	end, err := parseFlagDate("--end", distEnd)
	if err != nil {
		return err
	}
	if end != nil {
		inclusive := end.Add(24*time.Hour - time.Nanosecond)
		end = &inclusive
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dist, err := a.service.Distribution(context.Background(), start, end)
	if err != nil {
		return err
	}
	if reportJSON {
		return PrintJSON(dist)
	}

	PrintHeader(fmt.Sprintf("Win-rate distribution (%d graded)", dist.Total))
	widths := []int{10, 8, 8, 12}
	PrintTableHeader([]string{"LEVEL", "COUNT", "WON", "ACTUAL"}, widths)
	for _, b := range dist.Buckets {
		PrintTableRow([]string{string(b.Level), strconv.Itoa(b.Count), strconv.Itoa(b.Won), pct(b.ActualWinRate * 100)}, widths)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	months := validateMons
	if months == 0 {
		months = a.cfg.Scheduler.AccuracyLookbackMonths
	}

	report, err := a.service.Validation(context.Background(), months)
	if err != nil {
		return err
	}
	if reportJSON {
		return PrintJSON(report)
	}

	PrintHeader(fmt.Sprintf("Model validation (last %d months)", report.LookbackMonths))
	PrintKeyValue("Since", report.Since.Format("2006-01-02"), 12)
	PrintKeyValue("Status", report.Status, 12)
	if !report.Sufficient() {
		PrintWarning(report.Message)
		return nil
	}
	PrintKeyValue("Sample size", strconv.Itoa(report.SampleSize), 12)
	PrintKeyValue("Accuracy", pct(report.Accuracy*100), 12)
	PrintKeyValue("Brier score", fmt.Sprintf("%.4f", report.BrierScore), 12)
	return nil
}

func parseFlagDate(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD: %w", flag, err)
	}
	return &t, nil
}
