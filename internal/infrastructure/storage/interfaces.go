package storage

import "time"

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	ConnectionRepository
	AccountRepository
	LinkedAccountRepository
	ExternalTransactionRepository
	LocalTransactionRepository
	CategoryRepository
	SyncRunRepository
	Close() error
}

// ConnectionRepository handles provider connection records.
type ConnectionRepository interface {
	// GetConnection retrieves a connection by ID, returning (nil, nil) when missing
	GetConnection(id string) (*Connection, error)

	// SaveConnection inserts or replaces a connection
	SaveConnection(conn *Connection) error

	// UpdateConnectionSyncState updates last-sync time and last-error
	// summary. A nil lastSyncAt leaves the stored value untouched.
	UpdateConnectionSyncState(id string, lastSyncAt *time.Time, lastError string) error
}

// AccountRepository handles local ledger accounts.
type AccountRepository interface {
	// GetAccount retrieves an account by ID
	GetAccount(id string) (*Account, error)

	// SaveAccount inserts or replaces an account
	SaveAccount(account *Account) error

	// SetAccountBaseline overwrites the account's baseline balance
	SetAccountBaseline(id string, baseline float64) error
}

// LinkedAccountRepository handles provider-to-local account mappings.
type LinkedAccountRepository interface {
	// UpsertLinkedAccount inserts or updates by (connection, external account id).
	// Existing local_account_id, sync_enabled and last_sync_at are preserved.
	UpsertLinkedAccount(la *LinkedAccount) error

	// ListLinkedAccounts returns all linked accounts for a connection
	ListLinkedAccounts(connectionID string) ([]*LinkedAccount, error)

	// UpdateLinkedAccountSyncTime records a successful account sync
	UpdateLinkedAccountSyncTime(id string, lastSyncAt time.Time) error
}

// ExternalTransactionRepository handles imported provider transactions.
type ExternalTransactionRepository interface {
	// ExternalTransactionExists reports whether the provider transaction id
	// has already been imported
	ExternalTransactionExists(externalID string) (bool, error)

	// SaveExternalTransaction inserts a new external transaction.
	// Fails on a duplicate external id.
	SaveExternalTransaction(tx *ExternalTransaction) error

	// ListTransactionsNeedingReview returns externals flagged for review
	ListTransactionsNeedingReview(limit int) ([]*ExternalTransaction, error)
}

// LocalTransactionRepository handles canonical ledger entries.
type LocalTransactionRepository interface {
	// CreateLocalTransaction inserts a new local transaction
	CreateLocalTransaction(tx *LocalTransaction) error

	// MarkTransactionFromBank flags an existing local transaction as
	// bank-sourced (used when an external transaction auto-links to it)
	MarkTransactionFromBank(id string) error

	// FindLocalCandidatesExact returns non-bank transactions in the account
	// with the given date and amount. A limit <= 0 falls back to a default.
	FindLocalCandidatesExact(accountID string, date time.Time, amount float64, limit int) ([]*LocalTransaction, error)

	// FindLocalCandidatesNear returns non-bank transactions in the account
	// with the given amount and a date inside [start, end]. A limit <= 0
	// falls back to a default.
	FindLocalCandidatesNear(accountID string, start, end time.Time, amount float64, limit int) ([]*LocalTransaction, error)

	// SumTransactionAmounts returns the signed sum of all local transaction
	// amounts for the account
	SumTransactionAmounts(accountID string) (float64, error)

	// ListLocalTransactions returns recent transactions for an account
	ListLocalTransactions(accountID string, limit, offset int) ([]*LocalTransaction, error)
}

// CategoryRepository handles the category taxonomy.
type CategoryRepository interface {
	// GetCategory retrieves a category by ID; returns (nil, nil) when missing
	GetCategory(id string) (*Category, error)

	// FindCategoryByName looks up a shared category by normalized name and
	// optional parent; returns (nil, nil) when missing
	FindCategoryByName(name string, parentID *string) (*Category, error)

	// CreateCategory inserts a new category
	CreateCategory(cat *Category) error
}

// SyncRunRepository handles sync run tracking.
type SyncRunRepository interface {
	// CreateSyncRun inserts a new run in IN_PROGRESS state
	CreateSyncRun(run *SyncRun) error

	// UpdateSyncRunCounters overwrites the counters of an in-progress run
	UpdateSyncRunCounters(id string, counters Counters) error

	// CompleteSyncRun marks a run COMPLETED with final counters and errors
	CompleteSyncRun(id string, counters Counters, errors []string) error

	// FailSyncRun marks a run FAILED with an error message
	FailSyncRun(id string, message string, errors []string) error

	// GetSyncRun retrieves a run by ID; returns (nil, nil) when missing
	GetSyncRun(id string) (*SyncRun, error)

	// ListSyncRuns returns recent runs, newest first
	ListSyncRuns(limit int) ([]*SyncRun, error)

	// GetStats returns aggregate statistics
	GetStats() (*Stats, error)
}
