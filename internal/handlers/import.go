package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"hinan-bknd/internal/importer"
	"hinan-bknd/internal/middleware"

	"go.uber.org/zap"
)

// ErrImportRunning is reported when an import is requested while another is in progress.
var ErrImportRunning = errors.New("an import is already running")

// ImportRunner runs one three-source import.
type ImportRunner interface {
	Run(ctx context.Context, paths importer.Paths, truncate bool) (*importer.Report, error)
}

type ImportHandler struct {
	runner  ImportRunner
	running atomic.Bool
	logr    *zap.Logger
}

func NewImportHandler(runner ImportRunner, logr *zap.Logger) *ImportHandler {
	return &ImportHandler{runner: runner, logr: logr}
}

type importReq struct {
	importer.Paths
	Truncate bool `json:"truncate"`
}

// POST /api/v1/admin/import
func (h *ImportHandler) RunImport(w http.ResponseWriter, r *http.Request) {
	var req importReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := req.Paths.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.running.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, ErrImportRunning.Error())
		return
	}
	defer h.running.Store(false)

	operator := ""
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		operator = claims.OperatorID
	}
	h.logr.Info("import requested",
		zap.String("operator_id", operator),
		zap.Bool("truncate", req.Truncate),
		zap.Any("paths", req.Paths))

	// A dropped connection must not stop a run halfway through a source.
	report, err := h.runner.Run(context.WithoutCancel(r.Context()), req.Paths, req.Truncate)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, importer.ErrMissingFile) {
			status = http.StatusUnprocessableEntity
		}
		h.logr.Error("import failed", zap.Error(err))
		writeJSON(w, status, map[string]any{"success": false, "error": err.Error(), "data": report})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": report})
}
