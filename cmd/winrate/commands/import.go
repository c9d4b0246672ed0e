package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/winrate/internal/importer"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import [file.csv|file.xlsx]",
	Short: "과거 예측/결과 이력 가져오기",
	Long: `CSV 또는 XLSX 파일의 이력을 win_rate_history 에 적재합니다.

필수 컬럼: opportunity_id, predicted_win_rate, actual_result
선택 컬럼: result_date, prediction_date (그 외 컬럼은 features 로 저장)

잘못된 행은 건너뛰고 행 번호와 함께 보고합니다.

Example:
  go run ./cmd/winrate import history.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importJSON bool

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importJSON, "json", false, "JSON 출력")
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	im := importer.New(a.service, a.log.Zerolog())
	result, err := im.ImportFile(context.Background(), args[0])
	if err != nil {
		return err
	}
	if importJSON {
		return PrintJSON(result)
	}

	PrintHeader("History import " + result.Source)
	PrintKeyValue("Run ID", result.RunID, 10)
	PrintKeyValue("Rows", strconv.Itoa(result.TotalRows), 10)
	PrintKeyValue("Imported", strconv.Itoa(result.Imported), 10)
	PrintKeyValue("Failed", strconv.Itoa(result.Failed), 10)

	if len(result.Errors) > 0 {
		PrintSeparator()
		widths := []int{6, 20, 40}
		PrintTableHeader([]string{"ROW", "FIELD", "MESSAGE"}, widths)
		for _, e := range result.Errors {
			PrintTableRow([]string{strconv.Itoa(e.Row), e.Field, e.Message}, widths)
		}
		PrintWarning(fmt.Sprintf("%d rows skipped", result.Failed))
		return nil
	}

	PrintSuccess("All rows imported")
	return nil
}
