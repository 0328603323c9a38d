package sync

import "time"

// Options controls one sync run.
type Options struct {
	// StartDate overrides the computed fetch window start
	StartDate *time.Time
	// EndDate overrides the fetch window end (default: now)
	EndDate *time.Time
	// ForceFull ignores per-account last-sync times
	ForceFull bool
}

// Result summarizes a finished (or failed) run.
type Result struct {
	SyncRunID            string   `json:"sync_run_id"`
	AccountsSynced       int      `json:"accounts_synced"`
	TransactionsFetched  int      `json:"transactions_fetched"`
	TransactionsImported int      `json:"transactions_imported"`
	DuplicatesDetected   int      `json:"duplicates_detected"`
	NeedsReview          int      `json:"needs_review"`
	Errors               []string `json:"errors"`
}

// Tuning defaults.
const (
	// DefaultLookbackDays is the fetch window for a first-ever account sync
	DefaultLookbackDays = 7

	// DefaultAccountDelay separates per-account fetches to respect
	// provider rate limits
	DefaultAccountDelay = time.Second

	// lastSyncOverlap widens an incremental window backwards to pick up
	// late-arriving or clock-skewed transactions
	lastSyncOverlapDays = 1
)
