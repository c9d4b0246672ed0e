package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/internal/winrate"
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "단건 수주확률 예측",
	Long: `PredictionInput JSON 을 읽어 수주확률을 예측합니다.

--record 를 주면 예측과 PENDING 이력을 저장합니다 (opportunity_id 필수).

Example:
  go run ./cmd/winrate predict --input lead.json
  cat lead.json | go run ./cmd/winrate predict --input - --record --qualitative`,
	RunE: runPredict,
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "일괄 예측 (저장 안함)",
	Long: `LeadInput JSON 배열을 읽어 일괄 예측합니다.
한 건의 실패가 전체를 실패시키지 않으며 결과는 입력 순서를 유지합니다.

Example:
  go run ./cmd/winrate batch --input leads.json --workers 8`,
	RunE: runBatch,
}

var (
	predictInput       string
	predictRecord      bool
	predictQualitative bool
	predictCreatedBy   string
	predictJSON        bool

	batchInput   string
	batchWorkers int
	batchJSON    bool
)

func init() {
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(batchCmd)

	predictCmd.Flags().StringVar(&predictInput, "input", "-", "입력 JSON 파일 (- 은 stdin)")
	predictCmd.Flags().BoolVar(&predictRecord, "record", false, "예측 결과 저장")
	predictCmd.Flags().BoolVar(&predictQualitative, "qualitative", false, "정성 분석 포함")
	predictCmd.Flags().StringVar(&predictCreatedBy, "created-by", "cli", "작성자")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "JSON 출력")

	batchCmd.Flags().StringVar(&batchInput, "input", "-", "입력 JSON 파일 (- 은 stdin)")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 1, "동시 작업 수")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "JSON 출력")
}

func runPredict(cmd *cobra.Command, args []string) error {
	var in contracts.PredictionInput
	if err := readJSONInput(predictInput, &in); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	if !predictRecord {
		res, err := a.service.Preview(ctx, in)
		if err != nil {
			return err
		}
		if predictJSON {
			return PrintJSON(res)
		}
		printResult(res)
		if predictQualitative {
			report, err := a.service.Analyze(ctx, in)
			if err != nil {
				return err
			}
			printQualitative(report)
		}
		return nil
	}

	p, err := a.service.PredictAndRecord(ctx, winrate.RecordRequest{
		Input:       in,
		CreatedBy:   predictCreatedBy,
		Qualitative: predictQualitative,
	})
	if err != nil {
		return err
	}
	if predictJSON {
		return PrintJSON(p)
	}

	PrintHeader(fmt.Sprintf("Prediction #%d (opportunity %d)", p.ID, p.OpportunityID))
	PrintKeyValue("Win rate", pct(p.PredictedWinRate), 12)
	PrintKeyValue("Level", string(p.Level), 12)
	PrintKeyValue("Confidence", fmt.Sprintf("%.2f", p.Confidence), 12)
	PrintKeyValue("Model", p.ModelID, 12)
	PrintSeparator()
	PrintList(p.Recommendations)
	if p.Qualitative != nil {
		printQualitative(p.Qualitative)
	}
	PrintSuccess("Prediction recorded")
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	var leads []contracts.LeadInput
	if err := readJSONInput(batchInput, &leads); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	items := a.service.BatchPredict(context.Background(), leads, batchWorkers)
	if batchJSON {
		return PrintJSON(items)
	}

	PrintHeader(fmt.Sprintf("Batch prediction (%d leads, %d workers)", len(leads), batchWorkers))
	widths := []int{10, 10, 10, 40}
	PrintTableHeader([]string{"LEAD", "WIN RATE", "LEVEL", "ERROR"}, widths)

	failed := 0
	for _, item := range items {
		if item.Failed() {
			failed++
			PrintTableRow([]string{strconv.FormatInt(item.LeadID, 10), "-", "-", item.Error}, widths)
			continue
		}
		PrintTableRow([]string{
			strconv.FormatInt(item.LeadID, 10),
			pct(item.Result.Percent()),
			string(item.Result.Level),
			"",
		}, widths)
	}

	PrintSeparator()
	if failed > 0 {
		PrintWarning(fmt.Sprintf("%d of %d leads failed", failed, len(items)))
		return nil
	}
	PrintSuccess(fmt.Sprintf("%d leads predicted", len(items)))
	return nil
}

func printResult(res *contracts.PredictionResult) {
	PrintHeader("Win-rate prediction")
	PrintKeyValue("Win rate", pct(res.Percent()), 12)
	PrintKeyValue("Level", string(res.Level), 12)
	PrintKeyValue("Confidence", fmt.Sprintf("%.2f", res.Confidence), 12)
	PrintKeyValue("Total score", fmt.Sprintf("%.1f", res.TotalScore), 12)
	PrintKeyValue("Factors", fmt.Sprintf("sp=%.2f cust=%.2f comp=%.2f amt=%.2f prod=%.2f",
		res.Factors.SalespersonFactor, res.Factors.CustomerFactor, res.Factors.CompetitorFactor,
		res.Factors.AmountFactor, res.Factors.ProductFactor), 12)
	PrintKeyValue("Similar", fmt.Sprintf("%d leads, %.0f%% won", res.SimilarLeadsCount, res.SimilarLeadsWinRate*100), 12)
	PrintSeparator()
	PrintList(res.Recommendations)
}

func printQualitative(q *contracts.QualitativeReport) {
	PrintSeparator()
	PrintKeyValue("Qualitative", fmt.Sprintf("%d (%s)", q.WinRateScore, q.Source), 12)
	if q.IsFallback() {
		PrintWarning("LLM unavailable, deterministic fallback used")
	}
}

// readJSONInput decodes a file (or stdin for "-") into v
func readJSONInput(path string, v interface{}) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}
