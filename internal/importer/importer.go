package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/internal/winrate"
	"github.com/wonny/winrate/pkg/partial"
)

// BatchSize 한 번에 저장하는 이력 행 수
const BatchSize = 500

// 컬럼
const (
	ColOpportunityID    = "opportunity_id"
	ColPredictedWinRate = "predicted_win_rate"
	ColActualResult     = "actual_result"
	ColResultDate       = "result_date"
	ColPredictionDate   = "prediction_date"
)

// RequiredColumns must be present in the header row
var RequiredColumns = []string{ColOpportunityID, ColPredictedWinRate, ColActualResult}

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX
var ErrUnsupportedFormat = errors.New("unsupported import format (want .csv or .xlsx)")

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "2006/01/02", "01/02/2006"}

// RowError 행 단위 오류 (Row 는 헤더를 1행으로 센 파일상 행 번호)
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result 가져오기 결과
type Result struct {
	RunID     string     `json:"run_id"`
	Source    string     `json:"source"`
	TotalRows int        `json:"total_rows"`
	Imported  int        `json:"imported"`
	Failed    int        `json:"failed"`
	Errors    []RowError `json:"errors"`
}

// Importer 과거 예측/결과 이력 가져오기
// 잘못된 행은 건너뛰고 기록, 나머지는 BatchSize 단위로 저장
type Importer struct {
	store     winrate.HistoryImporter
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

// New creates an importer writing through store
func New(store winrate.HistoryImporter, log zerolog.Logger) *Importer {
	return &Importer{
		store:     store,
		batchSize: BatchSize,
		now:       time.Now,
		log:       log.With().Str("component", "winrate.importer").Logger(),
	}
}

// ImportFile opens path and imports it according to its extension
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	return im.Import(ctx, filepath.Base(path), f)
}

// Import reads r as CSV or XLSX depending on the extension of name
func (im *Importer) Import(ctx context.Context, name string, r io.Reader) (*Result, error) {
	var (
		table [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		table, err = ReadCSV(r)
	case ".xlsx":
		table, err = ReadXLSX(r)
	default:
		return nil, contracts.NewValidationError("file", "%s: %v", name, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}

	result, err := im.ImportTable(ctx, table)
	if result != nil {
		result.Source = name
	}
	return result, err
}

// row is a parsed record and its file line
type row struct {
	line   int
	record contracts.OutcomeHistoryRecord
}

// ImportTable imports a header row followed by data rows
func (im *Importer) ImportTable(ctx context.Context, table [][]string) (*Result, error) {
	if len(table) == 0 {
		return nil, contracts.NewValidationError("file", "empty file")
	}

	cols, err := headerIndex(table[0])
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	now := im.now()
	data := table[1:]

	parsed := partial.Collect(ctx, data, func(_ context.Context, i int, cells []string) (*row, error) {
		if blank(cells) {
			return nil, nil
		}
		rec, err := parseRow(cols, cells, runID, now)
		if err != nil {
			return nil, err
		}
		return &row{line: i + 2, record: *rec}, nil
	})

	result := &Result{RunID: runID, Errors: []RowError{}}
	var ok []row
	for _, p := range parsed {
		if p.OK() && p.Value == nil {
			continue
		}
		result.TotalRows++
		if p.Err != nil {
			result.Errors = append(result.Errors, rowError(p.Index+2, p.Err))
			continue
		}
		ok = append(ok, *p.Value)
	}

	for start := 0; start < len(ok); start += im.batchSize {
		end := start + im.batchSize
		if end > len(ok) {
			end = len(ok)
		}
		chunk := ok[start:end]

		records := make([]contracts.OutcomeHistoryRecord, len(chunk))
		for i, r := range chunk {
			records[i] = r.record
		}

		// 배치는 전부 저장되거나 전부 실패
		n, err := im.store.InsertHistoryBatch(ctx, records)
		if err != nil {
			im.log.Error().Err(err).
				Str("run_id", runID).
				Int("first_row", chunk[0].line).
				Int("rows", len(chunk)).
				Msg("history batch insert failed")
			for _, r := range chunk {
				result.Errors = append(result.Errors, RowError{Row: r.line, Message: err.Error()})
			}
			continue
		}
		result.Imported += n
	}

	result.Failed = len(result.Errors)

	im.log.Info().
		Str("run_id", runID).
		Int("total", result.TotalRows).
		Int("imported", result.Imported).
		Int("failed", result.Failed).
		Msg("history import completed")

	return result, nil
}

// headerIndex maps normalized column names to positions
func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if key == "" {
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := cols[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, contracts.NewValidationError("header", "missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// parseRow validates one data row
func parseRow(cols map[string]int, cells []string, runID string, now time.Time) (*contracts.OutcomeHistoryRecord, error) {
	cell := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	oppID, err := strconv.ParseInt(cell(ColOpportunityID), 10, 64)
	if err != nil || oppID <= 0 {
		return nil, contracts.NewValidationError(ColOpportunityID, "must be a positive integer (got %q)", cell(ColOpportunityID))
	}

	rawRate := strings.TrimSuffix(cell(ColPredictedWinRate), "%")
	rate, err := strconv.ParseFloat(strings.TrimSpace(rawRate), 64)
	if err != nil || rate < 0 || rate > 100 {
		return nil, contracts.NewValidationError(ColPredictedWinRate, "must be a number within [0,100] (got %q)", cell(ColPredictedWinRate))
	}

	result, err := contracts.ParseActualResult(cell(ColActualResult))
	if err != nil {
		return nil, err
	}

	resultDate, err := parseDate(ColResultDate, cell(ColResultDate))
	if err != nil {
		return nil, err
	}
	predictionDate, err := parseDate(ColPredictionDate, cell(ColPredictionDate))
	if err != nil {
		return nil, err
	}

	features := map[string]interface{}{"source": "import", "import_run_id": runID}
	for col, i := range cols {
		switch col {
		case ColOpportunityID, ColPredictedWinRate, ColActualResult, ColResultDate, ColPredictionDate:
			continue
		}
		if i < len(cells) && strings.TrimSpace(cells[i]) != "" {
			features[col] = strings.TrimSpace(cells[i])
		}
	}

	rec := &contracts.OutcomeHistoryRecord{
		OpportunityID:    oppID,
		PredictedWinRate: rate,
		ActualResult:     result,
		Features:         features,
	}
	if predictionDate != nil {
		rec.CreatedAt = *predictionDate
	}

	if predErr, correct, graded := contracts.Grade(rate, result); graded {
		rec.PredictionError = &predErr
		rec.IsCorrect = &correct
		rec.ResultDate = resultDate
		rec.GradedAt = &now
		rec.GradedBy = "import"
	}

	return rec, nil
}

func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, contracts.NewValidationError(field, "unrecognized date %q", value)
}

func rowError(line int, err error) RowError {
	var ve *contracts.ValidationError
	if errors.As(err, &ve) {
		return RowError{Row: line, Field: ve.Field, Message: ve.Message}
	}
	return RowError{Row: line, Message: err.Error()}
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
