package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/internal/winrate"
)

// gradeCmd represents the grade command
var gradeCmd = &cobra.Command{
	Use:   "grade [opportunity_id] [won|lost|pending]",
	Short: "실제 결과 기록 (최신 예측 채점)",
	Long: `영업기회의 최신 예측 이력에 실제 결과를 기록합니다.
PENDING 은 이전 채점을 되돌립니다.

Example:
  go run ./cmd/winrate grade 42 won
  go run ./cmd/winrate grade 42 lost --date 2025-03-31`,
	Args: cobra.ExactArgs(2),
	RunE: runGrade,
}

var (
	gradeBy   string
	gradeDate string
)

func init() {
	rootCmd.AddCommand(gradeCmd)

	gradeCmd.Flags().StringVar(&gradeBy, "by", "cli", "기록자")
	gradeCmd.Flags().StringVar(&gradeDate, "date", "", "결과 일자 YYYY-MM-DD (기본: 오늘)")
}

func runGrade(cmd *cobra.Command, args []string) error {
	oppID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || oppID <= 0 {
		return fmt.Errorf("opportunity_id must be a positive integer (got %q)", args[0])
	}
	result, err := contracts.ParseActualResult(args[1])
	if err != nil {
		return err
	}

	req := winrate.GradeRequest{OpportunityID: oppID, Result: result, UpdatedBy: gradeBy}
	if gradeDate != "" {
		d, err := time.Parse("2006-01-02", gradeDate)
		if err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
		switch result {
		case contracts.ResultWon:
			req.WinDate = &d
		case contracts.ResultLost:
			req.LostDate = &d
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.service.Grade(context.Background(), req)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Opportunity %d graded %s", rec.OpportunityID, rec.ActualResult))
	PrintKeyValue("Predicted", pct(rec.PredictedWinRate), 10)
	if rec.PredictionError != nil {
		PrintKeyValue("Error", pct(*rec.PredictionError), 10)
	}
	if rec.IsCorrect != nil {
		PrintKeyValue("Correct", strconv.FormatBool(*rec.IsCorrect), 10)
	}
	PrintSuccess("Outcome recorded")
	return nil
}
