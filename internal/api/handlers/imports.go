package handlers

import (
	"errors"
	"net/http"

	"github.com/wonny/winrate/internal/importer"
	"github.com/wonny/winrate/pkg/logger"
)

// maxUploadBytes 업로드 파일 최대 크기 (32MB)
const maxUploadBytes = 32 << 20

// ImportHandler handles historical outcome uploads
type ImportHandler struct {
	importer *importer.Importer
	logger   *logger.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(im *importer.Importer, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		importer: im,
		logger:   log,
	}
}

// ImportHistory imports a CSV or XLSX file sent as multipart field "file"
// POST /api/imports/history
func (h *ImportHandler) ImportHistory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	result, err := h.importer.Import(r.Context(), header.Filename, file)
	if err != nil {
		respondDomainError(w, h.logger, err, "failed to import history")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"run_id":   result.RunID,
		"source":   result.Source,
		"imported": result.Imported,
		"failed":   result.Failed,
	}).Info("History imported")

	respondJSON(w, http.StatusOK, result)
}
