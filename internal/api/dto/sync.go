package dto

// TriggerSyncRequest is the optional request body for triggering a sync.
type TriggerSyncRequest struct {
	ForceFull bool    `json:"force_full"` // Ignore per-account last-sync times
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
}

// TriggerSyncResponse is returned when a sync is accepted.
type TriggerSyncResponse struct {
	SyncRunID    string `json:"sync_run_id"`
	ConnectionID string `json:"connection_id"`
	Status       string `json:"status"`
}

// SyncRunResponse represents a sync run in API responses.
type SyncRunResponse struct {
	ID                   string   `json:"id"`
	ConnectionID         string   `json:"connection_id"`
	Kind                 string   `json:"kind"`
	Status               string   `json:"status"`
	AccountsSynced       int      `json:"accounts_synced"`
	TransactionsFetched  int      `json:"transactions_fetched"`
	TransactionsImported int      `json:"transactions_imported"`
	DuplicatesDetected   int      `json:"duplicates_detected"`
	NeedsReview          int      `json:"needs_review"`
	ErrorMessage         string   `json:"error_message,omitempty"`
	Errors               []string `json:"errors,omitempty"`
	StartedAt            string   `json:"started_at"`
	CompletedAt          *string  `json:"completed_at,omitempty"`
}

// SyncRunListResponse is returned when listing sync runs.
type SyncRunListResponse struct {
	Runs  []SyncRunResponse `json:"runs"`
	Count int               `json:"count"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}
