package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlink/banksync/internal/api/dto"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
)

// TransactionsHandler handles transaction HTTP requests.
type TransactionsHandler struct {
	*Base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo storage.Repository) *TransactionsHandler {
	return &TransactionsHandler{
		Base: NewBase(repo),
	}
}

// ListByAccount handles GET /api/accounts/{id}/transactions.
func (h *TransactionsHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("account ID is required"))
		return
	}

	limit := ParseIntParam(r, "limit", 50)
	offset := ParseIntParam(r, "offset", 0)

	txs, err := h.repo.ListLocalTransactions(accountID, limit, offset)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.TransactionListResponse{
		Transactions: make([]dto.TransactionResponse, 0, len(txs)),
		Count:        len(txs),
		Limit:        limit,
		Offset:       offset,
	}

	for _, tx := range txs {
		response.Transactions = append(response.Transactions, toTransactionResponse(tx))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// ListNeedingReview handles GET /api/transactions/review - external
// transactions parked for a manual duplicate decision.
func (h *TransactionsHandler) ListNeedingReview(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 50)

	txs, err := h.repo.ListTransactionsNeedingReview(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.ReviewListResponse{
		Transactions: make([]dto.ReviewTransactionResponse, 0, len(txs)),
		Count:        len(txs),
	}

	for _, tx := range txs {
		response.Transactions = append(response.Transactions, dto.ReviewTransactionResponse{
			ID:                  tx.ID,
			ConnectionID:        tx.ConnectionID,
			ExternalID:          tx.ExternalID,
			Date:                tx.Date.Format("2006-01-02"),
			Amount:              tx.Amount,
			Description:         tx.Description,
			MerchantName:        tx.MerchantName,
			ProviderCategory:    tx.ProviderCategory,
			DuplicateConfidence: tx.DuplicateConfidence,
			ImportedAt:          tx.ImportedAt.Format(time.RFC3339),
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func toTransactionResponse(tx *storage.LocalTransaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:           tx.ID,
		AccountID:    tx.AccountID,
		Date:         tx.Date.Format("2006-01-02"),
		Amount:       tx.Amount,
		Description:  tx.Description,
		MerchantName: tx.MerchantName,
		Notes:        tx.Notes,
		Type:         tx.Type,
		Status:       tx.Status,
		CategoryID:   tx.CategoryID,
		FromBank:     tx.FromBank,
	}
}
