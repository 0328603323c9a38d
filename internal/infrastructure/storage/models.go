package storage

import (
	"encoding/json"
	"time"
)

// Run kinds
const (
	RunKindFull        = "FULL"
	RunKindIncremental = "INCREMENTAL"
)

// Run statuses
const (
	RunStatusInProgress = "IN_PROGRESS"
	RunStatusCompleted  = "COMPLETED"
	RunStatusFailed     = "FAILED"
)

// Local transaction types and statuses
const (
	TransactionTypeIncome    = "INCOME"
	TransactionTypeExpense   = "EXPENSE"
	TransactionStatusCleared = "CLEARED"
)

// Connection represents a link to an external banking provider.
type Connection struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	ProviderType string     `json:"provider_type"`
	Status       string     `json:"status"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Account is a locally-owned ledger account. Its displayed balance is
// BaselineBalance plus the sum of its local transaction amounts.
type Account struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	Currency        string    `json:"currency"`
	BaselineBalance float64   `json:"baseline_balance"`
	CreatedAt       time.Time `json:"created_at"`
}

// LinkedAccount maps a provider account to an optional local account.
// Upserted by (connection_id, external_account_id) on every account-list sync.
type LinkedAccount struct {
	ID                string     `json:"id"`
	ConnectionID      string     `json:"connection_id"`
	ExternalAccountID string     `json:"external_account_id"`
	LocalAccountID    *string    `json:"local_account_id,omitempty"`
	Name              string     `json:"name"`
	Type              string     `json:"type"`
	Institution       string     `json:"institution"`
	Mask              string     `json:"mask,omitempty"`
	SyncEnabled       bool       `json:"sync_enabled"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
}

// ExternalTransaction mirrors one provider transaction. ExternalID is the
// idempotency key: the unique constraint on it is what makes overlapping
// sync windows safe to retry.
type ExternalTransaction struct {
	ID                  int64     `json:"id"`
	ConnectionID        string    `json:"connection_id"`
	LinkedAccountID     string    `json:"linked_account_id"`
	ExternalID          string    `json:"external_id"`
	Date                time.Time `json:"date"`
	Amount              float64   `json:"amount"`
	Description         string    `json:"description"`
	MerchantName        string    `json:"merchant_name,omitempty"`
	ProviderCategory    []string  `json:"provider_category,omitempty"`
	BalanceAfter        *float64  `json:"balance_after,omitempty"`
	Pending             bool      `json:"pending"`
	IsDuplicate         bool      `json:"is_duplicate"`
	DuplicateConfidence *int      `json:"duplicate_confidence,omitempty"`
	NeedsReview         bool      `json:"needs_review"`
	LocalTransactionID  *string   `json:"local_transaction_id,omitempty"`
	ImportedAt          time.Time `json:"imported_at"`
}

// categoryJSON serializes the provider category path for DB storage.
func (t *ExternalTransaction) categoryJSON() string {
	if len(t.ProviderCategory) == 0 {
		return ""
	}
	data, err := json.Marshal(t.ProviderCategory)
	if err != nil {
		return ""
	}
	return string(data)
}

// LocalTransaction is the canonical ledger entry. Amount is signed:
// positive for income, negative for expenses.
type LocalTransaction struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	UserID       string    `json:"user_id"`
	Date         time.Time `json:"date"`
	Amount       float64   `json:"amount"`
	Description  string    `json:"description"`
	MerchantName string    `json:"merchant_name,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	CategoryID   *string   `json:"category_id,omitempty"`
	FromBank     bool      `json:"from_bank"`
	CreatedAt    time.Time `json:"created_at"`
}

// Category is a two-level taxonomy entry. OwnerUserID is nil for shared
// (system) categories; domain code goes through categorizer.Ownership
// rather than reading the column directly.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ParentID    *string   `json:"parent_id,omitempty"`
	OwnerUserID *string   `json:"owner_user_id,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SyncRun is the audit record for one sync. Created IN_PROGRESS before any
// network call; counters only grow while in progress and freeze once the
// run reaches a terminal status.
type SyncRun struct {
	ID                   string     `json:"id"`
	ConnectionID         string     `json:"connection_id"`
	Kind                 string     `json:"kind"`
	Status               string     `json:"status"`
	AccountsSynced       int        `json:"accounts_synced"`
	TransactionsFetched  int        `json:"transactions_fetched"`
	TransactionsImported int        `json:"transactions_imported"`
	DuplicatesDetected   int        `json:"duplicates_detected"`
	NeedsReview          int        `json:"needs_review"`
	ErrorMessage         string     `json:"error_message,omitempty"`
	Errors               []string   `json:"errors,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// Counters is the counter set of an in-progress run.
type Counters struct {
	AccountsSynced       int
	TransactionsFetched  int
	TransactionsImported int
	DuplicatesDetected   int
	NeedsReview          int
}

// Stats contains aggregate sync statistics for the stats endpoint.
type Stats struct {
	TotalRuns            int     `json:"total_runs"`
	CompletedRuns        int     `json:"completed_runs"`
	FailedRuns           int     `json:"failed_runs"`
	TransactionsImported int     `json:"transactions_imported"`
	DuplicatesDetected   int     `json:"duplicates_detected"`
	PendingReview        int     `json:"pending_review"`
	TotalImportedAmount  float64 `json:"total_imported_amount"`
}
