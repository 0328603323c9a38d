package handlers

import (
	"net/http"

	"github.com/ledgerlink/banksync/internal/api/dto"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
)

// StatsHandler handles stats-related HTTP requests.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(repo storage.Repository) *StatsHandler {
	return &StatsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/stats - returns aggregate sync statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats()
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.StatsResponse{
		TotalRuns:            stats.TotalRuns,
		CompletedRuns:        stats.CompletedRuns,
		FailedRuns:           stats.FailedRuns,
		TransactionsImported: stats.TransactionsImported,
		DuplicatesDetected:   stats.DuplicatesDetected,
		PendingReview:        stats.PendingReview,
		TotalImportedAmount:  stats.TotalImportedAmount,
	}

	h.WriteJSON(w, http.StatusOK, response)
}
