package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu sync.Mutex

	connections    map[string]*Connection
	accounts       map[string]*Account
	linkedAccounts map[string]*LinkedAccount // keyed by connection_id + "/" + external_account_id
	externals      map[string]*ExternalTransaction
	locals         map[string]*LocalTransaction
	categories     map[string]*Category
	runs           map[string]*SyncRun
	nextExternalID int64

	// Hooks for test assertions
	SaveExternalCalled   bool
	LastSavedExternal    *ExternalTransaction
	CreateLocalCalled    bool
	LastCreatedLocal     *LocalTransaction
	MarkFromBankCalled   bool
	SetBaselineCalled    bool
	LastBaseline         float64

	// Error injection for testing error paths
	FindCandidatesErr error
	SaveExternalErr   error
	CreateLocalErr    error
	SumAmountsErr     error
	CreateRunErr      error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		connections:    make(map[string]*Connection),
		accounts:       make(map[string]*Account),
		linkedAccounts: make(map[string]*LinkedAccount),
		externals:      make(map[string]*ExternalTransaction),
		locals:         make(map[string]*LocalTransaction),
		categories:     make(map[string]*Category),
		runs:           make(map[string]*SyncRun),
		nextExternalID: 1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// GetConnection retrieves a connection by ID, returning (nil, nil) when missing
func (m *MockRepository) GetConnection(id string) (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return nil, nil
	}
	copied := *conn
	return &copied, nil
}

// SaveConnection stores a connection
func (m *MockRepository) SaveConnection(conn *Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *conn
	m.connections[conn.ID] = &copied
	return nil
}

// UpdateConnectionSyncState updates last-sync state
func (m *MockRepository) UpdateConnectionSyncState(id string, lastSyncAt *time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return fmt.Errorf("connection not found: %s", id)
	}
	if lastSyncAt != nil {
		t := *lastSyncAt
		conn.LastSyncAt = &t
	}
	conn.LastError = lastError
	return nil
}

// GetAccount retrieves an account by ID
func (m *MockRepository) GetAccount(id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account not found: %s", id)
	}
	copied := *account
	return &copied, nil
}

// SaveAccount stores an account
func (m *MockRepository) SaveAccount(account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

// SetAccountBaseline overwrites the baseline balance
func (m *MockRepository) SetAccountBaseline(id string, baseline float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetBaselineCalled = true
	m.LastBaseline = baseline
	account, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %s", id)
	}
	account.BaselineBalance = baseline
	return nil
}

func linkedKey(connectionID, externalAccountID string) string {
	return connectionID + "/" + externalAccountID
}

// UpsertLinkedAccount inserts or refreshes by (connection, external id)
func (m *MockRepository) UpsertLinkedAccount(la *LinkedAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := linkedKey(la.ConnectionID, la.ExternalAccountID)
	if existing, ok := m.linkedAccounts[key]; ok {
		existing.Name = la.Name
		existing.Type = la.Type
		existing.Institution = la.Institution
		existing.Mask = la.Mask
		la.ID = existing.ID
		return nil
	}
	copied := *la
	m.linkedAccounts[key] = &copied
	return nil
}

// ListLinkedAccounts returns linked accounts for a connection
func (m *MockRepository) ListLinkedAccounts(connectionID string) ([]*LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var accounts []*LinkedAccount
	for _, la := range m.linkedAccounts {
		if la.ConnectionID == connectionID {
			copied := *la
			accounts = append(accounts, &copied)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ExternalAccountID < accounts[j].ExternalAccountID
	})
	return accounts, nil
}

// UpdateLinkedAccountSyncTime records a successful account sync
func (m *MockRepository) UpdateLinkedAccountSyncTime(id string, lastSyncAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, la := range m.linkedAccounts {
		if la.ID == id {
			la.LastSyncAt = &lastSyncAt
			return nil
		}
	}
	return fmt.Errorf("linked account not found: %s", id)
}

// ExternalTransactionExists checks the idempotency key
func (m *MockRepository) ExternalTransactionExists(externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.externals[externalID]
	return ok, nil
}

// SaveExternalTransaction inserts an external transaction, enforcing the
// unique external id constraint
func (m *MockRepository) SaveExternalTransaction(tx *ExternalTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveExternalCalled = true
	if m.SaveExternalErr != nil {
		return m.SaveExternalErr
	}
	if _, ok := m.externals[tx.ExternalID]; ok {
		return fmt.Errorf("UNIQUE constraint failed: external_transactions.external_id (%s)", tx.ExternalID)
	}
	tx.ID = m.nextExternalID
	m.nextExternalID++
	copied := *tx
	m.externals[tx.ExternalID] = &copied
	m.LastSavedExternal = &copied
	return nil
}

// ListTransactionsNeedingReview returns flagged externals
func (m *MockRepository) ListTransactionsNeedingReview(limit int) ([]*ExternalTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []*ExternalTransaction
	for _, tx := range m.externals {
		if tx.NeedsReview {
			copied := *tx
			txs = append(txs, &copied)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// CreateLocalTransaction inserts a local transaction
func (m *MockRepository) CreateLocalTransaction(tx *LocalTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateLocalCalled = true
	if m.CreateLocalErr != nil {
		return m.CreateLocalErr
	}
	copied := *tx
	m.locals[tx.ID] = &copied
	m.LastCreatedLocal = &copied
	return nil
}

// MarkTransactionFromBank flags a local transaction as bank-sourced
func (m *MockRepository) MarkTransactionFromBank(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkFromBankCalled = true
	tx, ok := m.locals[id]
	if !ok {
		return fmt.Errorf("local transaction not found: %s", id)
	}
	tx.FromBank = true
	tx.Status = TransactionStatusCleared
	return nil
}

// FindLocalCandidatesExact filters by account, calendar day and amount
func (m *MockRepository) FindLocalCandidatesExact(accountID string, date time.Time, amount float64, limit int) ([]*LocalTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindCandidatesErr != nil {
		return nil, m.FindCandidatesErr
	}
	var txs []*LocalTransaction
	for _, tx := range m.locals {
		if tx.AccountID != accountID || tx.FromBank {
			continue
		}
		if !sameDay(tx.Date, date) || !sameAmount(tx.Amount, amount) {
			continue
		}
		copied := *tx
		txs = append(txs, &copied)
	}
	sortByID(txs)
	if limit <= 0 {
		limit = 50
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// FindLocalCandidatesNear filters by account, date range and amount
func (m *MockRepository) FindLocalCandidatesNear(accountID string, start, end time.Time, amount float64, limit int) ([]*LocalTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindCandidatesErr != nil {
		return nil, m.FindCandidatesErr
	}
	startDay := truncateToDay(start)
	endDay := truncateToDay(end)
	var txs []*LocalTransaction
	for _, tx := range m.locals {
		if tx.AccountID != accountID || tx.FromBank {
			continue
		}
		day := truncateToDay(tx.Date)
		if day.Before(startDay) || day.After(endDay) || !sameAmount(tx.Amount, amount) {
			continue
		}
		copied := *tx
		txs = append(txs, &copied)
	}
	sortByID(txs)
	if limit <= 0 {
		limit = 50
	}
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// SumTransactionAmounts sums signed amounts for an account
func (m *MockRepository) SumTransactionAmounts(accountID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SumAmountsErr != nil {
		return 0, m.SumAmountsErr
	}
	var sum float64
	for _, tx := range m.locals {
		if tx.AccountID == accountID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

// ListLocalTransactions returns recent transactions for an account
func (m *MockRepository) ListLocalTransactions(accountID string, limit, offset int) ([]*LocalTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var txs []*LocalTransaction
	for _, tx := range m.locals {
		if tx.AccountID == accountID {
			copied := *tx
			txs = append(txs, &copied)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	if offset > len(txs) {
		offset = len(txs)
	}
	txs = txs[offset:]
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// GetCategory retrieves a category by ID; (nil, nil) when missing
func (m *MockRepository) GetCategory(id string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cat, ok := m.categories[id]
	if !ok {
		return nil, nil
	}
	copied := *cat
	return &copied, nil
}

// DeleteCategory removes a category (test helper for stale-cache scenarios)
func (m *MockRepository) DeleteCategory(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.categories, id)
}

// FindCategoryByName looks up a shared category; (nil, nil) when missing
func (m *MockRepository) FindCategoryByName(name string, parentID *string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cat := range m.categories {
		if cat.OwnerUserID != nil || cat.Name != name {
			continue
		}
		if (cat.ParentID == nil) != (parentID == nil) {
			continue
		}
		if parentID != nil && *cat.ParentID != *parentID {
			continue
		}
		copied := *cat
		return &copied, nil
	}
	return nil, nil
}

// CreateCategory inserts a category
func (m *MockRepository) CreateCategory(cat *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *cat
	m.categories[cat.ID] = &copied
	return nil
}

// CreateSyncRun inserts a run
func (m *MockRepository) CreateSyncRun(run *SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateRunErr != nil {
		return m.CreateRunErr
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunStatusInProgress
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// UpdateSyncRunCounters overwrites counters of an in-progress run
func (m *MockRepository) UpdateSyncRunCounters(id string, counters Counters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("sync run not found: %s", id)
	}
	if run.Status != RunStatusInProgress {
		return nil
	}
	applyCounters(run, counters)
	return nil
}

// CompleteSyncRun marks a run COMPLETED
func (m *MockRepository) CompleteSyncRun(id string, counters Counters, errs []string) error {
	return m.finalize(id, RunStatusCompleted, "", &counters, errs)
}

// FailSyncRun marks a run FAILED
func (m *MockRepository) FailSyncRun(id string, message string, errs []string) error {
	return m.finalize(id, RunStatusFailed, message, nil, errs)
}

func (m *MockRepository) finalize(id, status, message string, counters *Counters, errs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("sync run not found: %s", id)
	}
	if run.Status != RunStatusInProgress {
		return fmt.Errorf("sync run %s is not in progress", id)
	}
	run.Status = status
	run.ErrorMessage = message
	if counters != nil {
		applyCounters(run, *counters)
	}
	run.Errors = append([]string(nil), errs...)
	now := time.Now()
	run.CompletedAt = &now
	return nil
}

// GetSyncRun retrieves a run by ID; returns (nil, nil) when missing
func (m *MockRepository) GetSyncRun(id string) (*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

// ListSyncRuns returns runs newest first
func (m *MockRepository) ListSyncRuns(limit int) ([]*SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := make([]*SyncRun, 0, len(m.runs))
	for _, run := range m.runs {
		copied := *run
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetStats returns aggregate statistics over the in-memory data
func (m *MockRepository) GetStats() (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &Stats{}
	for _, run := range m.runs {
		stats.TotalRuns++
		switch run.Status {
		case RunStatusCompleted:
			stats.CompletedRuns++
		case RunStatusFailed:
			stats.FailedRuns++
		}
		stats.TransactionsImported += run.TransactionsImported
		stats.DuplicatesDetected += run.DuplicatesDetected
	}
	for _, tx := range m.externals {
		if tx.NeedsReview {
			stats.PendingReview++
		}
	}
	for _, tx := range m.locals {
		if tx.FromBank {
			stats.TotalImportedAmount += tx.Amount
		}
	}
	return stats, nil
}

// GetLocalTransaction is a test helper for inspecting stored locals
func (m *MockRepository) GetLocalTransaction(id string) *LocalTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.locals[id]
	if !ok {
		return nil
	}
	copied := *tx
	return &copied
}

// GetExternalTransaction is a test helper keyed by external id
func (m *MockRepository) GetExternalTransaction(externalID string) *ExternalTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.externals[externalID]
	if !ok {
		return nil
	}
	copied := *tx
	return &copied
}

// CountLocalTransactions is a test helper
func (m *MockRepository) CountLocalTransactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locals)
}

func applyCounters(run *SyncRun, c Counters) {
	run.AccountsSynced = c.AccountsSynced
	run.TransactionsFetched = c.TransactionsFetched
	run.TransactionsImported = c.TransactionsImported
	run.DuplicatesDetected = c.DuplicatesDetected
	run.NeedsReview = c.NeedsReview
}

func sameDay(a, b time.Time) bool {
	return truncateToDay(a).Equal(truncateToDay(b))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameAmount(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.005
}

func sortByID(txs []*LocalTransaction) {
	sort.Slice(txs, func(i, j int) bool {
		return strings.Compare(txs[i].ID, txs[j].ID) < 0
	})
}
