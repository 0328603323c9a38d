package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlink/banksync/internal/api/dto"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
)

// RunsHandler handles sync run-related HTTP requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent sync runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)

	runs, err := h.repo.ListSyncRuns(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.SyncRunListResponse{
		Runs:  make([]dto.SyncRunResponse, 0, len(runs)),
		Count: len(runs),
	}

	for _, run := range runs {
		response.Runs = append(response.Runs, toSyncRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - the polling endpoint for a triggered sync.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetSyncRun(id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	if run == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("sync run"))
		return
	}

	h.WriteJSON(w, http.StatusOK, toSyncRunResponse(run))
}

// toSyncRunResponse converts a storage SyncRun to an API response.
func toSyncRunResponse(run *storage.SyncRun) dto.SyncRunResponse {
	resp := dto.SyncRunResponse{
		ID:                   run.ID,
		ConnectionID:         run.ConnectionID,
		Kind:                 run.Kind,
		Status:               run.Status,
		AccountsSynced:       run.AccountsSynced,
		TransactionsFetched:  run.TransactionsFetched,
		TransactionsImported: run.TransactionsImported,
		DuplicatesDetected:   run.DuplicatesDetected,
		NeedsReview:          run.NeedsReview,
		ErrorMessage:         run.ErrorMessage,
		Errors:               run.Errors,
		StartedAt:            run.StartedAt.Format(time.RFC3339),
	}

	if run.CompletedAt != nil {
		completedAt := run.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completedAt
	}

	return resp
}
