package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlink/banksync/internal/api/dto"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
)

// AccountsHandler handles linked-account HTTP requests.
type AccountsHandler struct {
	*Base
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(repo storage.Repository) *AccountsHandler {
	return &AccountsHandler{
		Base: NewBase(repo),
	}
}

// ListByConnection handles GET /api/connections/{id}/accounts.
func (h *AccountsHandler) ListByConnection(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "id")
	if connectionID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("connection ID is required"))
		return
	}

	accounts, err := h.repo.ListLinkedAccounts(connectionID)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.LinkedAccountListResponse{
		Accounts: make([]dto.LinkedAccountResponse, 0, len(accounts)),
		Count:    len(accounts),
	}

	for _, la := range accounts {
		response.Accounts = append(response.Accounts, toLinkedAccountResponse(la))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func toLinkedAccountResponse(la *storage.LinkedAccount) dto.LinkedAccountResponse {
	resp := dto.LinkedAccountResponse{
		ID:                la.ID,
		ConnectionID:      la.ConnectionID,
		ExternalAccountID: la.ExternalAccountID,
		LocalAccountID:    la.LocalAccountID,
		Name:              la.Name,
		Type:              la.Type,
		Institution:       la.Institution,
		Mask:              la.Mask,
		SyncEnabled:       la.SyncEnabled,
	}
	if la.LastSyncAt != nil {
		lastSync := la.LastSyncAt.Format(time.RFC3339)
		resp.LastSyncAt = &lastSync
	}
	return resp
}
