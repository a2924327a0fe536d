package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"surveypilot/internal/model"
	"surveypilot/internal/pipeline"
	"surveypilot/internal/service"
)

// Selections is the service surface the selection endpoints need
type Selections interface {
	Select(ctx context.Context, req *model.SelectionRequest) (*model.SelectionResult, error)
	GetSelection(ctx context.Context, runID string) (*model.SelectionLog, error)
}

// SelectionHandler handles selection endpoints
type SelectionHandler struct {
	selections Selections
	logger     *zap.Logger
}

// NewSelectionHandler creates a new selection handler
func NewSelectionHandler(selections Selections, logger *zap.Logger) *SelectionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionHandler{
		selections: selections,
		logger:     logger,
	}
}

// Select handles POST /v1/businesses/{businessId}/selections
func (h *SelectionHandler) Select(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessId"]

	var req model.SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BusinessID != "" && req.BusinessID != businessID {
		writeError(w, http.StatusBadRequest, "businessId in body does not match path")
		return
	}
	req.BusinessID = businessID

	result, err := h.selections.Select(r.Context(), &req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Selection failed", zap.String("businessId", businessID), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Get handles GET /v1/businesses/{businessId}/selections/{runId}
func (h *SelectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	entry, err := h.selections.GetSelection(r.Context(), vars["runId"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	// Run IDs are global; hide runs of other businesses
	if entry.BusinessID != vars["businessId"] {
		writeError(w, http.StatusNotFound, service.ErrSelectionNotFound.Error())
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidConstraints):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoActiveRule), errors.Is(err, pipeline.ErrAmbiguousActiveRule):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrSelectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConfigUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
