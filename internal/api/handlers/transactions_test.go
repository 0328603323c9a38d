package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/banksync/internal/api/dto"
	"github.com/ledgerlink/banksync/internal/api/handlers"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
)

func TestTransactionsHandler_ListByAccount(t *testing.T) {
	repo := storage.NewMockRepository()
	require.NoError(t, repo.CreateLocalTransaction(&storage.LocalTransaction{
		ID:          "tx-1",
		AccountID:   "acct-1",
		UserID:      "user-1",
		Date:        time.Now(),
		Amount:      -42.50,
		Description: "Coffee Shop",
		Type:        storage.TransactionTypeExpense,
		Status:      storage.TransactionStatusCleared,
		FromBank:    true,
	}))
	require.NoError(t, repo.CreateLocalTransaction(&storage.LocalTransaction{
		ID:        "tx-other",
		AccountID: "acct-2",
		UserID:    "user-1",
		Date:      time.Now(),
		Amount:    -10,
		Type:      storage.TransactionTypeExpense,
		Status:    storage.TransactionStatusCleared,
	}))

	handler := handlers.NewTransactionsHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acct-1/transactions?limit=10", nil)
	req = req.WithContext(setChiURLParam(req.Context(), "id", "acct-1"))
	rec := httptest.NewRecorder()

	handler.ListByAccount(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.TransactionListResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)

	require.Equal(t, 1, response.Count)
	assert.Equal(t, 10, response.Limit)
	assert.Equal(t, 0, response.Offset)
	assert.Equal(t, "tx-1", response.Transactions[0].ID)
	assert.Equal(t, "Coffee Shop", response.Transactions[0].Description)
	assert.True(t, response.Transactions[0].FromBank)
}

func TestTransactionsHandler_ListByAccount_MissingID(t *testing.T) {
	handler := handlers.NewTransactionsHandler(storage.NewMockRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/accounts//transactions", nil)
	req = req.WithContext(setChiURLParam(req.Context(), "id", ""))
	rec := httptest.NewRecorder()

	handler.ListByAccount(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransactionsHandler_ListNeedingReview(t *testing.T) {
	repo := storage.NewMockRepository()

	confidence := 82
	require.NoError(t, repo.SaveExternalTransaction(&storage.ExternalTransaction{
		ConnectionID:        "conn-1",
		LinkedAccountID:     "la-1",
		ExternalID:          "tx-review",
		Date:                time.Now(),
		Amount:              -42.50,
		Description:         "Possible duplicate",
		ProviderCategory:    []string{"Food and Drink"},
		NeedsReview:         true,
		DuplicateConfidence: &confidence,
	}))
	require.NoError(t, repo.SaveExternalTransaction(&storage.ExternalTransaction{
		ConnectionID:    "conn-1",
		LinkedAccountID: "la-1",
		ExternalID:      "tx-clean",
		Date:            time.Now(),
		Amount:          -10,
	}))

	handler := handlers.NewTransactionsHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions/review", nil)
	rec := httptest.NewRecorder()

	handler.ListNeedingReview(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.ReviewListResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)

	require.Equal(t, 1, response.Count)
	assert.Equal(t, "tx-review", response.Transactions[0].ExternalID)
	require.NotNil(t, response.Transactions[0].DuplicateConfidence)
	assert.Equal(t, 82, *response.Transactions[0].DuplicateConfidence)
}
