package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for the sync pipeline.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// ----------------------------------------------------------------
// Connections
// ----------------------------------------------------------------

// GetConnection retrieves a connection by ID, returning (nil, nil) when missing
func (s *Storage) GetConnection(id string) (*Connection, error) {
	query := `
	SELECT id, user_id, name, provider_type, status, last_sync_at, last_error, created_at
	FROM connections WHERE id = ?
	`

	conn := &Connection{}
	var lastSync sql.NullTime
	var lastError sql.NullString
	err := s.db.QueryRow(query, id).Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Name,
		&conn.ProviderType,
		&conn.Status,
		&lastSync,
		&lastError,
		&conn.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastSync.Valid {
		t := lastSync.Time
		conn.LastSyncAt = &t
	}
	if lastError.Valid {
		conn.LastError = lastError.String
	}

	return conn, nil
}

// SaveConnection inserts or replaces a connection
func (s *Storage) SaveConnection(conn *Connection) error {
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}
	query := `
	INSERT OR REPLACE INTO connections
	(id, user_id, name, provider_type, status, last_sync_at, last_error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		conn.ID,
		conn.UserID,
		conn.Name,
		conn.ProviderType,
		conn.Status,
		conn.LastSyncAt,
		conn.LastError,
		conn.CreatedAt,
	)
	return err
}

// UpdateConnectionSyncState updates last-sync time and last-error summary.
// A nil lastSyncAt leaves the stored value untouched.
func (s *Storage) UpdateConnectionSyncState(id string, lastSyncAt *time.Time, lastError string) error {
	if lastSyncAt == nil {
		_, err := s.db.Exec(`UPDATE connections SET last_error = ? WHERE id = ?`, lastError, id)
		return err
	}
	query := `UPDATE connections SET last_sync_at = ?, last_error = ? WHERE id = ?`
	_, err := s.db.Exec(query, *lastSyncAt, lastError, id)
	return err
}

// ----------------------------------------------------------------
// Accounts
// ----------------------------------------------------------------

// GetAccount retrieves an account by ID
func (s *Storage) GetAccount(id string) (*Account, error) {
	query := `
	SELECT id, user_id, name, type, currency, baseline_balance, created_at
	FROM accounts WHERE id = ?
	`

	account := &Account{}
	var acctType sql.NullString
	err := s.db.QueryRow(query, id).Scan(
		&account.ID,
		&account.UserID,
		&account.Name,
		&acctType,
		&account.Currency,
		&account.BaselineBalance,
		&account.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Type = acctType.String

	return account, nil
}

// SaveAccount inserts or replaces an account
func (s *Storage) SaveAccount(account *Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	if account.Currency == "" {
		account.Currency = "USD"
	}
	query := `
	INSERT OR REPLACE INTO accounts
	(id, user_id, name, type, currency, baseline_balance, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		account.ID,
		account.UserID,
		account.Name,
		account.Type,
		account.Currency,
		account.BaselineBalance,
		account.CreatedAt,
	)
	return err
}

// SetAccountBaseline overwrites the account's baseline balance
func (s *Storage) SetAccountBaseline(id string, baseline float64) error {
	result, err := s.db.Exec(`UPDATE accounts SET baseline_balance = ? WHERE id = ?`, baseline, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

// ----------------------------------------------------------------
// Linked accounts
// ----------------------------------------------------------------

// UpsertLinkedAccount inserts or updates by (connection, external account id).
// Provider-owned fields are refreshed; locally-owned fields (local account
// binding, sync flag, last sync time) are preserved on conflict.
func (s *Storage) UpsertLinkedAccount(la *LinkedAccount) error {
	query := `
	INSERT INTO linked_accounts
	(id, connection_id, external_account_id, local_account_id, name, type,
	 institution, mask, sync_enabled, last_sync_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(connection_id, external_account_id) DO UPDATE SET
		name = excluded.name,
		type = excluded.type,
		institution = excluded.institution,
		mask = excluded.mask
	`
	_, err := s.db.Exec(query,
		la.ID,
		la.ConnectionID,
		la.ExternalAccountID,
		la.LocalAccountID,
		la.Name,
		la.Type,
		la.Institution,
		la.Mask,
		la.SyncEnabled,
		la.LastSyncAt,
	)
	return err
}

// ListLinkedAccounts returns all linked accounts for a connection
func (s *Storage) ListLinkedAccounts(connectionID string) ([]*LinkedAccount, error) {
	query := `
	SELECT id, connection_id, external_account_id, local_account_id, name, type,
	       institution, mask, sync_enabled, last_sync_at
	FROM linked_accounts WHERE connection_id = ?
	ORDER BY name
	`

	rows, err := s.db.Query(query, connectionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var accounts []*LinkedAccount
	for rows.Next() {
		la, err := scanLinkedAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, la)
	}

	return accounts, rows.Err()
}

func scanLinkedAccount(rows *sql.Rows) (*LinkedAccount, error) {
	la := &LinkedAccount{}
	var localAccountID, name, acctType, institution, mask sql.NullString
	var lastSync sql.NullTime
	err := rows.Scan(
		&la.ID,
		&la.ConnectionID,
		&la.ExternalAccountID,
		&localAccountID,
		&name,
		&acctType,
		&institution,
		&mask,
		&la.SyncEnabled,
		&lastSync,
	)
	if err != nil {
		return nil, err
	}
	if localAccountID.Valid {
		v := localAccountID.String
		la.LocalAccountID = &v
	}
	la.Name = name.String
	la.Type = acctType.String
	la.Institution = institution.String
	la.Mask = mask.String
	if lastSync.Valid {
		t := lastSync.Time
		la.LastSyncAt = &t
	}
	return la, nil
}

// UpdateLinkedAccountSyncTime records a successful account sync
func (s *Storage) UpdateLinkedAccountSyncTime(id string, lastSyncAt time.Time) error {
	_, err := s.db.Exec(`UPDATE linked_accounts SET last_sync_at = ? WHERE id = ?`, lastSyncAt, id)
	return err
}

// ----------------------------------------------------------------
// External transactions
// ----------------------------------------------------------------

// ExternalTransactionExists reports whether the provider transaction id has
// already been imported
func (s *Storage) ExternalTransactionExists(externalID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM external_transactions WHERE external_id = ?`,
		externalID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveExternalTransaction inserts a new external transaction.
// The unique constraint on external_id rejects duplicate imports.
func (s *Storage) SaveExternalTransaction(tx *ExternalTransaction) error {
	if tx.ImportedAt.IsZero() {
		tx.ImportedAt = time.Now()
	}
	query := `
	INSERT INTO external_transactions
	(connection_id, linked_account_id, external_id, date, amount, description,
	 merchant_name, provider_category, balance_after, pending, is_duplicate,
	 duplicate_confidence, needs_review, local_transaction_id, imported_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.Exec(query,
		tx.ConnectionID,
		tx.LinkedAccountID,
		tx.ExternalID,
		tx.Date,
		tx.Amount,
		tx.Description,
		tx.MerchantName,
		tx.categoryJSON(),
		tx.BalanceAfter,
		tx.Pending,
		tx.IsDuplicate,
		tx.DuplicateConfidence,
		tx.NeedsReview,
		tx.LocalTransactionID,
		tx.ImportedAt,
	)
	if err != nil {
		return err
	}
	tx.ID, _ = result.LastInsertId()
	return nil
}

// ListTransactionsNeedingReview returns externals flagged for review
func (s *Storage) ListTransactionsNeedingReview(limit int) ([]*ExternalTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, connection_id, linked_account_id, external_id, date, amount,
	       description, merchant_name, provider_category, balance_after, pending,
	       is_duplicate, duplicate_confidence, needs_review, local_transaction_id,
	       imported_at
	FROM external_transactions
	WHERE needs_review = 1
	ORDER BY date DESC
	LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []*ExternalTransaction
	for rows.Next() {
		tx := &ExternalTransaction{}
		var description, merchant, category, localTxID sql.NullString
		var balanceAfter sql.NullFloat64
		var confidence sql.NullInt64
		err := rows.Scan(
			&tx.ID,
			&tx.ConnectionID,
			&tx.LinkedAccountID,
			&tx.ExternalID,
			&tx.Date,
			&tx.Amount,
			&description,
			&merchant,
			&category,
			&balanceAfter,
			&tx.Pending,
			&tx.IsDuplicate,
			&confidence,
			&tx.NeedsReview,
			&localTxID,
			&tx.ImportedAt,
		)
		if err != nil {
			return nil, err
		}
		tx.Description = description.String
		tx.MerchantName = merchant.String
		if category.Valid && category.String != "" {
			_ = json.Unmarshal([]byte(category.String), &tx.ProviderCategory)
		}
		if balanceAfter.Valid {
			v := balanceAfter.Float64
			tx.BalanceAfter = &v
		}
		if confidence.Valid {
			v := int(confidence.Int64)
			tx.DuplicateConfidence = &v
		}
		if localTxID.Valid {
			v := localTxID.String
			tx.LocalTransactionID = &v
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

// ----------------------------------------------------------------
// Local transactions
// ----------------------------------------------------------------

// CreateLocalTransaction inserts a new local transaction
func (s *Storage) CreateLocalTransaction(tx *LocalTransaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	query := `
	INSERT INTO local_transactions
	(id, account_id, user_id, date, amount, description, merchant_name, notes,
	 type, status, category_id, from_bank, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		tx.ID,
		tx.AccountID,
		tx.UserID,
		tx.Date,
		tx.Amount,
		tx.Description,
		tx.MerchantName,
		tx.Notes,
		tx.Type,
		tx.Status,
		tx.CategoryID,
		tx.FromBank,
		tx.CreatedAt,
	)
	return err
}

// MarkTransactionFromBank flags an existing local transaction as bank-sourced
func (s *Storage) MarkTransactionFromBank(id string) error {
	result, err := s.db.Exec(
		`UPDATE local_transactions SET from_bank = 1, status = ? WHERE id = ?`,
		TransactionStatusCleared, id,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("local transaction not found: %s", id)
	}
	return nil
}

// FindLocalCandidatesExact returns non-bank transactions in the account with
// the given date and amount. Dates are compared by calendar day.
func (s *Storage) FindLocalCandidatesExact(accountID string, date time.Time, amount float64, limit int) ([]*LocalTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, account_id, user_id, date, amount, description, merchant_name,
	       notes, type, status, category_id, from_bank, created_at
	FROM local_transactions
	WHERE account_id = ?
	  AND from_bank = 0
	  AND date(date) = date(?)
	  AND ABS(amount - ?) < 0.005
	LIMIT ?
	`
	return s.queryLocalTransactions(query, accountID, date, amount, limit)
}

// FindLocalCandidatesNear returns non-bank transactions in the account with
// the given amount and a date inside [start, end]
func (s *Storage) FindLocalCandidatesNear(accountID string, start, end time.Time, amount float64, limit int) ([]*LocalTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, account_id, user_id, date, amount, description, merchant_name,
	       notes, type, status, category_id, from_bank, created_at
	FROM local_transactions
	WHERE account_id = ?
	  AND from_bank = 0
	  AND date(date) >= date(?)
	  AND date(date) <= date(?)
	  AND ABS(amount - ?) < 0.005
	LIMIT ?
	`
	return s.queryLocalTransactions(query, accountID, start, end, amount, limit)
}

// ListLocalTransactions returns recent transactions for an account
func (s *Storage) ListLocalTransactions(accountID string, limit, offset int) ([]*LocalTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
	SELECT id, account_id, user_id, date, amount, description, merchant_name,
	       notes, type, status, category_id, from_bank, created_at
	FROM local_transactions
	WHERE account_id = ?
	ORDER BY date DESC
	LIMIT ? OFFSET ?
	`
	return s.queryLocalTransactions(query, accountID, limit, offset)
}

func (s *Storage) queryLocalTransactions(query string, args ...interface{}) ([]*LocalTransaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []*LocalTransaction
	for rows.Next() {
		tx := &LocalTransaction{}
		var description, merchant, notes, categoryID sql.NullString
		err := rows.Scan(
			&tx.ID,
			&tx.AccountID,
			&tx.UserID,
			&tx.Date,
			&tx.Amount,
			&description,
			&merchant,
			&notes,
			&tx.Type,
			&tx.Status,
			&categoryID,
			&tx.FromBank,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		tx.Description = description.String
		tx.MerchantName = merchant.String
		tx.Notes = notes.String
		if categoryID.Valid {
			v := categoryID.String
			tx.CategoryID = &v
		}
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

// SumTransactionAmounts returns the signed sum of all local transaction
// amounts for the account
func (s *Storage) SumTransactionAmounts(accountID string) (float64, error) {
	var sum float64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM local_transactions WHERE account_id = ?`,
		accountID,
	).Scan(&sum)
	return sum, err
}

// ----------------------------------------------------------------
// Categories
// ----------------------------------------------------------------

// GetCategory retrieves a category by ID; returns (nil, nil) when missing
func (s *Storage) GetCategory(id string) (*Category, error) {
	query := `
	SELECT id, name, parent_id, owner_user_id, color, created_at
	FROM categories WHERE id = ?
	`

	cat := &Category{}
	var parentID, owner, color sql.NullString
	err := s.db.QueryRow(query, id).Scan(
		&cat.ID,
		&cat.Name,
		&parentID,
		&owner,
		&color,
		&cat.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		v := parentID.String
		cat.ParentID = &v
	}
	if owner.Valid {
		v := owner.String
		cat.OwnerUserID = &v
	}
	cat.Color = color.String

	return cat, nil
}

// FindCategoryByName looks up a shared category by name and optional parent;
// returns (nil, nil) when missing
func (s *Storage) FindCategoryByName(name string, parentID *string) (*Category, error) {
	query := `
	SELECT id, name, parent_id, owner_user_id, color, created_at
	FROM categories
	WHERE name = ? AND owner_user_id IS NULL
	`
	args := []interface{}{name}
	if parentID != nil {
		query += ` AND parent_id = ?`
		args = append(args, *parentID)
	} else {
		query += ` AND parent_id IS NULL`
	}

	cat := &Category{}
	var pid, owner, color sql.NullString
	err := s.db.QueryRow(query, args...).Scan(
		&cat.ID,
		&cat.Name,
		&pid,
		&owner,
		&color,
		&cat.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pid.Valid {
		v := pid.String
		cat.ParentID = &v
	}
	if owner.Valid {
		v := owner.String
		cat.OwnerUserID = &v
	}
	cat.Color = color.String

	return cat, nil
}

// CreateCategory inserts a new category
func (s *Storage) CreateCategory(cat *Category) error {
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = time.Now()
	}
	query := `
	INSERT INTO categories (id, name, parent_id, owner_user_id, color, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		cat.ID,
		cat.Name,
		cat.ParentID,
		cat.OwnerUserID,
		cat.Color,
		cat.CreatedAt,
	)
	return err
}

// ----------------------------------------------------------------
// Sync runs
// ----------------------------------------------------------------

// CreateSyncRun inserts a new run in IN_PROGRESS state
func (s *Storage) CreateSyncRun(run *SyncRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunStatusInProgress
	}
	query := `
	INSERT INTO sync_runs
	(id, connection_id, kind, status, accounts_synced, transactions_fetched,
	 transactions_imported, duplicates_detected, needs_review, error_message,
	 error_detail, started_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		run.ID,
		run.ConnectionID,
		run.Kind,
		run.Status,
		run.AccountsSynced,
		run.TransactionsFetched,
		run.TransactionsImported,
		run.DuplicatesDetected,
		run.NeedsReview,
		run.ErrorMessage,
		marshalErrors(run.Errors),
		run.StartedAt,
		run.CompletedAt,
	)
	return err
}

// UpdateSyncRunCounters overwrites the counters of an in-progress run.
// Terminal runs are immutable.
func (s *Storage) UpdateSyncRunCounters(id string, counters Counters) error {
	query := `
	UPDATE sync_runs SET
		accounts_synced = ?,
		transactions_fetched = ?,
		transactions_imported = ?,
		duplicates_detected = ?,
		needs_review = ?
	WHERE id = ? AND status = ?
	`
	_, err := s.db.Exec(query,
		counters.AccountsSynced,
		counters.TransactionsFetched,
		counters.TransactionsImported,
		counters.DuplicatesDetected,
		counters.NeedsReview,
		id,
		RunStatusInProgress,
	)
	return err
}

// CompleteSyncRun marks a run COMPLETED with final counters and errors
func (s *Storage) CompleteSyncRun(id string, counters Counters, errs []string) error {
	return s.finalizeSyncRun(id, RunStatusCompleted, "", counters, errs)
}

// FailSyncRun marks a run FAILED with an error message
func (s *Storage) FailSyncRun(id string, message string, errs []string) error {
	// Counters are left where the run got to; read them back so the
	// finalize write doesn't zero them.
	run, err := s.GetSyncRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("sync run %s is not in progress", id)
	}
	counters := Counters{
		AccountsSynced:       run.AccountsSynced,
		TransactionsFetched:  run.TransactionsFetched,
		TransactionsImported: run.TransactionsImported,
		DuplicatesDetected:   run.DuplicatesDetected,
		NeedsReview:          run.NeedsReview,
	}
	return s.finalizeSyncRun(id, RunStatusFailed, message, counters, errs)
}

func (s *Storage) finalizeSyncRun(id, status, message string, counters Counters, errs []string) error {
	query := `
	UPDATE sync_runs SET
		status = ?,
		accounts_synced = ?,
		transactions_fetched = ?,
		transactions_imported = ?,
		duplicates_detected = ?,
		needs_review = ?,
		error_message = ?,
		error_detail = ?,
		completed_at = ?
	WHERE id = ? AND status = ?
	`
	result, err := s.db.Exec(query,
		status,
		counters.AccountsSynced,
		counters.TransactionsFetched,
		counters.TransactionsImported,
		counters.DuplicatesDetected,
		counters.NeedsReview,
		message,
		marshalErrors(errs),
		time.Now(),
		id,
		RunStatusInProgress,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("sync run %s is not in progress", id)
	}
	return nil
}

// GetSyncRun retrieves a run by ID; returns (nil, nil) when missing
func (s *Storage) GetSyncRun(id string) (*SyncRun, error) {
	query := `
	SELECT id, connection_id, kind, status, accounts_synced, transactions_fetched,
	       transactions_imported, duplicates_detected, needs_review, error_message,
	       error_detail, started_at, completed_at
	FROM sync_runs WHERE id = ?
	`
	row := s.db.QueryRow(query, id)
	run, err := scanSyncRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListSyncRuns returns recent runs, newest first
func (s *Storage) ListSyncRuns(limit int) ([]*SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT id, connection_id, kind, status, accounts_synced, transactions_fetched,
	       transactions_imported, duplicates_detected, needs_review, error_message,
	       error_detail, started_at, completed_at
	FROM sync_runs
	ORDER BY started_at DESC
	LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncRun(row rowScanner) (*SyncRun, error) {
	run := &SyncRun{}
	var errorMessage, errorDetail sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.ConnectionID,
		&run.Kind,
		&run.Status,
		&run.AccountsSynced,
		&run.TransactionsFetched,
		&run.TransactionsImported,
		&run.DuplicatesDetected,
		&run.NeedsReview,
		&errorMessage,
		&errorDetail,
		&run.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	run.ErrorMessage = errorMessage.String
	if errorDetail.Valid && errorDetail.String != "" {
		_ = json.Unmarshal([]byte(errorDetail.String), &run.Errors)
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}

// GetStats returns aggregate statistics
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{}

	runQuery := `
	SELECT
		COUNT(*) as total,
		COUNT(CASE WHEN status = 'COMPLETED' THEN 1 END) as completed,
		COUNT(CASE WHEN status = 'FAILED' THEN 1 END) as failed,
		COALESCE(SUM(transactions_imported), 0) as imported,
		COALESCE(SUM(duplicates_detected), 0) as duplicates
	FROM sync_runs
	`
	err := s.db.QueryRow(runQuery).Scan(
		&stats.TotalRuns,
		&stats.CompletedRuns,
		&stats.FailedRuns,
		&stats.TransactionsImported,
		&stats.DuplicatesDetected,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM external_transactions WHERE needs_review = 1`,
	).Scan(&stats.PendingReview)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM local_transactions WHERE from_bank = 1`,
	).Scan(&stats.TotalImportedAmount)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func marshalErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	data, err := json.Marshal(errs)
	if err != nil {
		return ""
	}
	return string(data)
}
