package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/internal/winrate"
	"github.com/wonny/winrate/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
	maxBatchLeads    = 1000
	dateLayout       = "2006-01-02"
)

// WinRateHandler handles prediction, grading and accuracy endpoints
// ⭐ SSOT: 수주확률 API 핸들러는 이 구조체에서만
type WinRateHandler struct {
	svc           *winrate.Service
	defaultMonths int
	logger        *logger.Logger
}

// NewWinRateHandler creates a new win-rate handler
// defaultMonths 는 validation 의 months 파라미터가 없을 때 사용
func NewWinRateHandler(svc *winrate.Service, defaultMonths int, log *logger.Logger) *WinRateHandler {
	if defaultMonths <= 0 {
		defaultMonths = 6
	}
	return &WinRateHandler{
		svc:           svc,
		defaultMonths: defaultMonths,
		logger:        log,
	}
}

// predictionRequest 예측 요청 본문
type predictionRequest struct {
	contracts.PredictionInput
	CreatedBy string `json:"created_by,omitempty"`
}

// outcomeRequest 결과 기록 요청 본문
type outcomeRequest struct {
	ActualResult string     `json:"actual_result"`
	UpdatedBy    string     `json:"updated_by,omitempty"`
	WinDate      *time.Time `json:"win_date,omitempty"`
	LostDate     *time.Time `json:"lost_date,omitempty"`
}

// batchRequest 일괄 예측 요청 본문
type batchRequest struct {
	Leads   []contracts.LeadInput `json:"leads"`
	Workers int                   `json:"workers,omitempty"`
}

// batchResponse 일괄 예측 응답
type batchResponse struct {
	Total     int                   `json:"total"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Items     []contracts.BatchItem `json:"items"`
}

// CreatePrediction predicts and records a prediction for an opportunity
// POST /api/predictions?qualitative=true
func (h *WinRateHandler) CreatePrediction(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, err, "failed to decode prediction request")
		return
	}

	withQualitative, _ := strconv.ParseBool(r.URL.Query().Get("qualitative"))

	p, err := h.svc.PredictAndRecord(r.Context(), winrate.RecordRequest{
		Input:       req.PredictionInput,
		CreatedBy:   req.CreatedBy,
		Qualitative: withQualitative,
	})
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to record prediction")
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

// PreviewPrediction runs the predictor without persisting anything
// POST /api/predictions/preview
func (h *WinRateHandler) PreviewPrediction(w http.ResponseWriter, r *http.Request) {
	var in contracts.PredictionInput
	if err := decodeJSON(r, &in); err != nil {
		respondDomainError(w, h.logger, err, "failed to decode prediction input")
		return
	}

	res, err := h.svc.Preview(r.Context(), in)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to predict")
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// BatchPredict predicts a list of leads; one bad lead does not fail the batch
// POST /api/predictions/batch
func (h *WinRateHandler) BatchPredict(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, err, "failed to decode batch request")
		return
	}
	if len(req.Leads) > maxBatchLeads {
		respondError(w, http.StatusBadRequest, "too many leads (max "+strconv.Itoa(maxBatchLeads)+")")
		return
	}

	items := h.svc.BatchPredict(r.Context(), req.Leads, req.Workers)

	resp := batchResponse{Total: len(items), Items: items}
	for _, item := range items {
		if item.Failed() {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetPrediction returns one stored prediction
// GET /api/predictions/{id}
func (h *WinRateHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.svc.GetPrediction(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to get prediction")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// ListPredictions returns an opportunity's predictions, newest first
// GET /api/opportunities/{id}/predictions?limit=
func (h *WinRateHandler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}

	list, err := h.svc.ListPredictions(r.Context(), id, limit)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to list predictions")
		return
	}
	if list == nil {
		list = []contracts.Prediction{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"opportunity_id": id,
		"predictions":    list,
	})
}

// RecordOutcome grades the opportunity's latest prediction
// POST /api/opportunities/{id}/outcome
func (h *WinRateHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req outcomeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, err, "failed to decode outcome request")
		return
	}

	result, err := contracts.ParseActualResult(req.ActualResult)
	if err != nil {
		respondDomainError(w, h.logger, err, "invalid actual result")
		return
	}

	rec, err := h.svc.Grade(r.Context(), winrate.GradeRequest{
		OpportunityID: id,
		Result:        result,
		UpdatedBy:     req.UpdatedBy,
		WinDate:       req.WinDate,
		LostDate:      req.LostDate,
	})
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to record outcome")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// GetAccuracy returns the overall accuracy summary
// GET /api/accuracy
func (h *WinRateHandler) GetAccuracy(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Accuracy(r.Context())
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to compute accuracy")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// GetDistribution returns accuracy per probability level
// GET /api/accuracy/distribution?start=YYYY-MM-DD&end=YYYY-MM-DD (end 포함)
func (h *WinRateHandler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseDay("start", q.Get("start"))
	if err != nil {
		respondDomainError(w, h.logger, err, "invalid start")
		return
	}
	end, err := parseDay("end", q.Get("end"))
	if err != nil {
		respondDomainError(w, h.logger, err, "invalid end")
		return
	}
	if end != nil {
		inclusive := end.Add(24*time.Hour - time.Nanosecond)
		end = &inclusive
	}
	if start != nil && end != nil && end.Before(*start) {
		respondError(w, http.StatusBadRequest, "end must not be before start")
		return
	}

	dist, err := h.svc.Distribution(r.Context(), start, end)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to compute distribution")
		return
	}

	respondJSON(w, http.StatusOK, dist)
}

// GetValidation returns the lookback validation report
// GET /api/accuracy/validation?months=6
func (h *WinRateHandler) GetValidation(w http.ResponseWriter, r *http.Request) {
	months := h.defaultMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "months must be an integer")
			return
		}
		months = n
	}

	report, err := h.svc.Validation(r.Context(), months)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to validate model")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// AnalyzeQualitative runs the qualitative gateway only
// POST /api/qualitative
func (h *WinRateHandler) AnalyzeQualitative(w http.ResponseWriter, r *http.Request) {
	var in contracts.PredictionInput
	if err := decodeJSON(r, &in); err != nil {
		respondDomainError(w, h.logger, err, "failed to decode analysis input")
		return
	}

	report, err := h.svc.Analyze(r.Context(), in)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to analyze")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseDay(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, contracts.NewValidationError(field, "must be YYYY-MM-DD (got %q)", value)
	}
	return &t, nil
}
