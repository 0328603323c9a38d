package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// LinkedAccountResponse represents a provider account mapping.
type LinkedAccountResponse struct {
	ID                string  `json:"id"`
	ConnectionID      string  `json:"connection_id"`
	ExternalAccountID string  `json:"external_account_id"`
	LocalAccountID    *string `json:"local_account_id,omitempty"`
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	Institution       string  `json:"institution"`
	Mask              string  `json:"mask,omitempty"`
	SyncEnabled       bool    `json:"sync_enabled"`
	LastSyncAt        *string `json:"last_sync_at,omitempty"`
}

// LinkedAccountListResponse is returned when listing a connection's accounts.
type LinkedAccountListResponse struct {
	Accounts []LinkedAccountResponse `json:"accounts"`
	Count    int                     `json:"count"`
}

// TransactionResponse represents a local ledger transaction.
type TransactionResponse struct {
	ID           string  `json:"id"`
	AccountID    string  `json:"account_id"`
	Date         string  `json:"date"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	MerchantName string  `json:"merchant_name,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	Type         string  `json:"type"`
	Status       string  `json:"status"`
	CategoryID   *string `json:"category_id,omitempty"`
	FromBank     bool    `json:"from_bank"`
}

// TransactionListResponse is returned when listing transactions.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Count        int                   `json:"count"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// ReviewTransactionResponse represents an external transaction waiting for
// a manual duplicate decision.
type ReviewTransactionResponse struct {
	ID                  int64    `json:"id"`
	ConnectionID        string   `json:"connection_id"`
	ExternalID          string   `json:"external_id"`
	Date                string   `json:"date"`
	Amount              float64  `json:"amount"`
	Description         string   `json:"description"`
	MerchantName        string   `json:"merchant_name,omitempty"`
	ProviderCategory    []string `json:"provider_category,omitempty"`
	DuplicateConfidence *int     `json:"duplicate_confidence,omitempty"`
	ImportedAt          string   `json:"imported_at"`
}

// ReviewListResponse is returned when listing transactions needing review.
type ReviewListResponse struct {
	Transactions []ReviewTransactionResponse `json:"transactions"`
	Count        int                         `json:"count"`
}

// StatsResponse is returned by the stats endpoint.
type StatsResponse struct {
	TotalRuns            int     `json:"total_runs"`
	CompletedRuns        int     `json:"completed_runs"`
	FailedRuns           int     `json:"failed_runs"`
	TransactionsImported int     `json:"transactions_imported"`
	DuplicatesDetected   int     `json:"duplicates_detected"`
	PendingReview        int     `json:"pending_review"`
	TotalImportedAmount  float64 `json:"total_imported_amount"`
}
