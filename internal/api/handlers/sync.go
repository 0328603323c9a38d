package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlink/banksync/internal/api/dto"
	"github.com/ledgerlink/banksync/internal/application/service"
	appsync "github.com/ledgerlink/banksync/internal/application/sync"
)

// SyncHandler handles sync trigger and cancel requests.
type SyncHandler struct {
	*Base
	syncService *service.SyncService
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(syncService *service.SyncService) *SyncHandler {
	return &SyncHandler{
		Base:        &Base{},
		syncService: syncService,
	}
}

// Trigger handles POST /api/connections/{id}/sync. The sync runs in the
// background; the response carries the run id to poll. An empty body is
// valid and means a default incremental sync.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "id")
	if connectionID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("connection ID is required"))
		return
	}

	var req dto.TriggerSyncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}

	opts := appsync.Options{ForceFull: req.ForceFull}
	if req.StartDate != nil {
		start, err := time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid start_date, expected YYYY-MM-DD"))
			return
		}
		opts.StartDate = &start
	}
	if req.EndDate != nil {
		end, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid end_date, expected YYYY-MM-DD"))
			return
		}
		opts.EndDate = &end
	}

	runID, err := h.syncService.TriggerSync(r.Context(), connectionID, opts)
	switch {
	case errors.Is(err, service.ErrConnectionNotFound):
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("connection"))
		return
	case err != nil:
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.TriggerSyncResponse{
		SyncRunID:    runID,
		ConnectionID: connectionID,
		Status:       "IN_PROGRESS",
	})
}

// Cancel handles DELETE /api/runs/{id} - cancels an in-flight run.
func (h *SyncHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	if err := h.syncService.CancelRun(runID); err != nil {
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Message: "Sync run cancelled",
	})
}
