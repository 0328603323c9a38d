package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	tmpDB := createTempDB(t)
	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		os.Remove(tmpDB)
	})
	return store
}

func seedConnection(t *testing.T, store *Storage, id string) *Connection {
	conn := &Connection{
		ID:           id,
		UserID:       "user-1",
		Name:         "Test Bank",
		ProviderType: "sandbox",
		Status:       "active",
	}
	require.NoError(t, store.SaveConnection(conn))
	return conn
}

func seedAccount(t *testing.T, store *Storage, id string) *Account {
	account := &Account{
		ID:       id,
		UserID:   "user-1",
		Name:     "Everyday Checking",
		Type:     "checking",
		Currency: "USD",
	}
	require.NoError(t, store.SaveAccount(account))
	return account
}

func seedLinkedAccount(t *testing.T, store *Storage, id, connectionID, externalID string, localAccountID *string) *LinkedAccount {
	la := &LinkedAccount{
		ID:                id,
		ConnectionID:      connectionID,
		ExternalAccountID: externalID,
		LocalAccountID:    localAccountID,
		Name:              "Checking",
		Type:              "depository",
		Institution:       "Test Bank",
		SyncEnabled:       true,
	}
	require.NoError(t, store.UpsertLinkedAccount(la))
	return la
}

func seedLocalTransaction(t *testing.T, store *Storage, id, accountID string, date time.Time, amount float64, description string) *LocalTransaction {
	tx := &LocalTransaction{
		ID:          id,
		AccountID:   accountID,
		UserID:      "user-1",
		Date:        date,
		Amount:      amount,
		Description: description,
		Type:        TransactionTypeExpense,
		Status:      TransactionStatusCleared,
	}
	require.NoError(t, store.CreateLocalTransaction(tx))
	return tx
}

func TestStorage_ConnectionRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")

	conn, err := store.GetConnection("conn-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Bank", conn.Name)
	assert.Equal(t, "sandbox", conn.ProviderType)
	assert.Nil(t, conn.LastSyncAt)
	assert.Empty(t, conn.LastError)
	assert.False(t, conn.CreatedAt.IsZero())

	missing, err := store.GetConnection("no-such-connection")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStorage_UpdateConnectionSyncState(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")

	syncedAt := time.Now().Truncate(time.Second)
	require.NoError(t, store.UpdateConnectionSyncState("conn-1", &syncedAt, ""))

	conn, err := store.GetConnection("conn-1")
	require.NoError(t, err)
	require.NotNil(t, conn.LastSyncAt)
	assert.Equal(t, syncedAt.Unix(), conn.LastSyncAt.Unix())
	assert.Empty(t, conn.LastError)

	t.Run("nil sync time preserves last success", func(t *testing.T) {
		require.NoError(t, store.UpdateConnectionSyncState("conn-1", nil, "provider timeout"))

		conn, err := store.GetConnection("conn-1")
		require.NoError(t, err)
		require.NotNil(t, conn.LastSyncAt)
		assert.Equal(t, syncedAt.Unix(), conn.LastSyncAt.Unix())
		assert.Equal(t, "provider timeout", conn.LastError)
	})

	t.Run("next success clears the error", func(t *testing.T) {
		later := syncedAt.Add(time.Hour)
		require.NoError(t, store.UpdateConnectionSyncState("conn-1", &later, ""))

		conn, err := store.GetConnection("conn-1")
		require.NoError(t, err)
		assert.Equal(t, later.Unix(), conn.LastSyncAt.Unix())
		assert.Empty(t, conn.LastError)
	})
}

func TestStorage_AccountBaseline(t *testing.T) {
	store := newTestStorage(t)
	seedAccount(t, store, "acct-1")

	require.NoError(t, store.SetAccountBaseline("acct-1", 1250.75))

	account, err := store.GetAccount("acct-1")
	require.NoError(t, err)
	assert.InDelta(t, 1250.75, account.BaselineBalance, 0.001)
}

func TestStorage_UpsertLinkedAccount_PreservesLocalBinding(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")
	seedAccount(t, store, "acct-1")

	localID := "acct-1"
	syncedAt := time.Now().Truncate(time.Second)
	la := &LinkedAccount{
		ID:                "la-1",
		ConnectionID:      "conn-1",
		ExternalAccountID: "ext-1",
		LocalAccountID:    &localID,
		Name:              "Checking",
		Institution:       "Test Bank",
		SyncEnabled:       true,
		LastSyncAt:        &syncedAt,
	}
	require.NoError(t, store.UpsertLinkedAccount(la))

	// Re-discovery of the same provider account: fresh row id, no binding,
	// updated provider-owned fields
	rediscovered := &LinkedAccount{
		ID:                "la-2",
		ConnectionID:      "conn-1",
		ExternalAccountID: "ext-1",
		Name:              "Everyday Checking",
		Institution:       "Test Bank",
		Mask:              "4321",
		SyncEnabled:       true,
	}
	require.NoError(t, store.UpsertLinkedAccount(rediscovered))

	accounts, err := store.ListLinkedAccounts("conn-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	got := accounts[0]
	assert.Equal(t, "la-1", got.ID, "original row id survives rediscovery")
	require.NotNil(t, got.LocalAccountID)
	assert.Equal(t, "acct-1", *got.LocalAccountID)
	assert.True(t, got.SyncEnabled)
	require.NotNil(t, got.LastSyncAt)
	assert.Equal(t, syncedAt.Unix(), got.LastSyncAt.Unix())
	assert.Equal(t, "Everyday Checking", got.Name)
	assert.Equal(t, "4321", got.Mask)
}

func TestStorage_UpdateLinkedAccountSyncTime(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")
	seedLinkedAccount(t, store, "la-1", "conn-1", "ext-1", nil)

	syncedAt := time.Now().Truncate(time.Second)
	require.NoError(t, store.UpdateLinkedAccountSyncTime("la-1", syncedAt))

	accounts, err := store.ListLinkedAccounts("conn-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.NotNil(t, accounts[0].LastSyncAt)
	assert.Equal(t, syncedAt.Unix(), accounts[0].LastSyncAt.Unix())
}

func TestStorage_ExternalTransactionIdempotency(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")
	seedLinkedAccount(t, store, "la-1", "conn-1", "ext-1", nil)

	exists, err := store.ExternalTransactionExists("tx-1")
	require.NoError(t, err)
	assert.False(t, exists)

	tx := &ExternalTransaction{
		ConnectionID:     "conn-1",
		LinkedAccountID:  "la-1",
		ExternalID:       "tx-1",
		Date:             time.Now(),
		Amount:           -42.50,
		Description:      "Coffee",
		ProviderCategory: []string{"Food and Drink", "Coffee"},
	}
	require.NoError(t, store.SaveExternalTransaction(tx))
	assert.NotZero(t, tx.ID)
	assert.False(t, tx.ImportedAt.IsZero())

	exists, err = store.ExternalTransactionExists("tx-1")
	require.NoError(t, err)
	assert.True(t, exists)

	// Same provider id again violates the unique constraint
	dup := &ExternalTransaction{
		ConnectionID:    "conn-1",
		LinkedAccountID: "la-1",
		ExternalID:      "tx-1",
		Date:            time.Now(),
		Amount:          -42.50,
	}
	err = store.SaveExternalTransaction(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNIQUE")
}

func TestStorage_ListTransactionsNeedingReview(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")
	seedLinkedAccount(t, store, "la-1", "conn-1", "ext-1", nil)

	confidence := 82
	flagged := &ExternalTransaction{
		ConnectionID:        "conn-1",
		LinkedAccountID:     "la-1",
		ExternalID:          "tx-review",
		Date:                time.Now(),
		Amount:              -10,
		Description:         "Possible duplicate",
		NeedsReview:         true,
		DuplicateConfidence: &confidence,
	}
	require.NoError(t, store.SaveExternalTransaction(flagged))

	clean := &ExternalTransaction{
		ConnectionID:    "conn-1",
		LinkedAccountID: "la-1",
		ExternalID:      "tx-clean",
		Date:            time.Now(),
		Amount:          -20,
	}
	require.NoError(t, store.SaveExternalTransaction(clean))

	txs, err := store.ListTransactionsNeedingReview(10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-review", txs[0].ExternalID)
	require.NotNil(t, txs[0].DuplicateConfidence)
	assert.Equal(t, 82, *txs[0].DuplicateConfidence)
	assert.Nil(t, txs[0].LocalTransactionID)
}

func TestStorage_FindLocalCandidatesExact(t *testing.T) {
	store := newTestStorage(t)
	seedAccount(t, store, "acct-1")

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	seedLocalTransaction(t, store, "tx-1", "acct-1", day.Add(9*time.Hour), -42.50, "Coffee Shop")
	seedLocalTransaction(t, store, "tx-2", "acct-1", day, -99.00, "Different amount")
	seedLocalTransaction(t, store, "tx-3", "acct-1", day.AddDate(0, 0, 1), -42.50, "Next day")

	// Bank-sourced rows are never candidates
	fromBank := &LocalTransaction{
		ID: "tx-4", AccountID: "acct-1", UserID: "user-1",
		Date: day, Amount: -42.50, Description: "Already imported",
		Type: TransactionTypeExpense, Status: TransactionStatusCleared,
		FromBank: true,
	}
	require.NoError(t, store.CreateLocalTransaction(fromBank))

	candidates, err := store.FindLocalCandidatesExact("acct-1", day, -42.50, 5)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "tx-1", candidates[0].ID, "same day matches regardless of time of day")

	t.Run("zero limit falls back to default", func(t *testing.T) {
		candidates, err := store.FindLocalCandidatesExact("acct-1", day, -42.50, 0)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
	})
}

func TestStorage_FindLocalCandidatesNear(t *testing.T) {
	store := newTestStorage(t)
	seedAccount(t, store, "acct-1")

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	seedLocalTransaction(t, store, "tx-start", "acct-1", day.AddDate(0, 0, -2), -42.50, "Window start")
	seedLocalTransaction(t, store, "tx-end", "acct-1", day.AddDate(0, 0, 2), -42.50, "Window end")
	seedLocalTransaction(t, store, "tx-outside", "acct-1", day.AddDate(0, 0, 3), -42.50, "Outside window")
	seedLocalTransaction(t, store, "tx-amount", "acct-1", day, -42.51, "Off by a cent")

	candidates, err := store.FindLocalCandidatesNear("acct-1", day.AddDate(0, 0, -2), day.AddDate(0, 0, 2), -42.50, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2, "window boundaries are inclusive")

	ids := []string{candidates[0].ID, candidates[1].ID}
	assert.Contains(t, ids, "tx-start")
	assert.Contains(t, ids, "tx-end")

	t.Run("zero limit falls back to default", func(t *testing.T) {
		candidates, err := store.FindLocalCandidatesNear("acct-1", day.AddDate(0, 0, -2), day.AddDate(0, 0, 2), -42.50, 0)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
	})
}

func TestStorage_MarkTransactionFromBank(t *testing.T) {
	store := newTestStorage(t)
	seedAccount(t, store, "acct-1")

	tx := &LocalTransaction{
		ID: "tx-1", AccountID: "acct-1", UserID: "user-1",
		Date: time.Now(), Amount: -10, Description: "Manual entry",
		Type: TransactionTypeExpense, Status: "PENDING",
	}
	require.NoError(t, store.CreateLocalTransaction(tx))

	require.NoError(t, store.MarkTransactionFromBank("tx-1"))

	txs, err := store.ListLocalTransactions("acct-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].FromBank)
	assert.Equal(t, TransactionStatusCleared, txs[0].Status)

	err = store.MarkTransactionFromBank("no-such-tx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStorage_SumTransactionAmounts(t *testing.T) {
	store := newTestStorage(t)
	seedAccount(t, store, "acct-1")
	seedAccount(t, store, "acct-2")

	now := time.Now()
	seedLocalTransaction(t, store, "tx-1", "acct-1", now, -42.50, "Groceries")
	seedLocalTransaction(t, store, "tx-2", "acct-1", now, 1500.00, "Salary")
	seedLocalTransaction(t, store, "tx-3", "acct-2", now, -999.00, "Other account")

	sum, err := store.SumTransactionAmounts("acct-1")
	require.NoError(t, err)
	assert.InDelta(t, 1457.50, sum, 0.001)

	sum, err = store.SumTransactionAmounts("acct-empty")
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestStorage_Categories(t *testing.T) {
	store := newTestStorage(t)

	parent := &Category{ID: "cat-parent", Name: "Food And Drink", Color: "#FF6B6B"}
	require.NoError(t, store.CreateCategory(parent))

	parentID := "cat-parent"
	child := &Category{ID: "cat-child", Name: "Restaurants", ParentID: &parentID, Color: "#4ECDC4"}
	require.NoError(t, store.CreateCategory(child))

	t.Run("find root by name", func(t *testing.T) {
		found, err := store.FindCategoryByName("Food And Drink", nil)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "cat-parent", found.ID)
		assert.Nil(t, found.ParentID)
	})

	t.Run("find child scoped to parent", func(t *testing.T) {
		found, err := store.FindCategoryByName("Restaurants", &parentID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "cat-child", found.ID)

		found, err = store.FindCategoryByName("Restaurants", nil)
		require.NoError(t, err)
		assert.Nil(t, found, "child name under a parent is not a root category")
	})

	t.Run("missing category is nil without error", func(t *testing.T) {
		found, err := store.GetCategory("no-such-category")
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = store.FindCategoryByName("Unknown", nil)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("user-owned categories are not shared lookups", func(t *testing.T) {
		owner := "user-1"
		private := &Category{ID: "cat-private", Name: "Hobbies", OwnerUserID: &owner}
		require.NoError(t, store.CreateCategory(private))

		found, err := store.FindCategoryByName("Hobbies", nil)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestStorage_SyncRunLifecycle(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")

	run := &SyncRun{
		ID:           "run-1",
		ConnectionID: "conn-1",
		Kind:         RunKindFull,
	}
	require.NoError(t, store.CreateSyncRun(run))
	assert.Equal(t, RunStatusInProgress, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	counters := Counters{
		AccountsSynced:      1,
		TransactionsFetched: 10,
	}
	require.NoError(t, store.UpdateSyncRunCounters("run-1", counters))

	got, err := store.GetSyncRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusInProgress, got.Status)
	assert.Equal(t, 10, got.TransactionsFetched)
	assert.Nil(t, got.CompletedAt)

	final := Counters{
		AccountsSynced:       1,
		TransactionsFetched:  10,
		TransactionsImported: 7,
		DuplicatesDetected:   2,
		NeedsReview:          1,
	}
	require.NoError(t, store.CompleteSyncRun("run-1", final, []string{"account ext-2: provider timeout"}))

	got, err = store.GetSyncRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	assert.Equal(t, 7, got.TransactionsImported)
	assert.Equal(t, 2, got.DuplicatesDetected)
	assert.Equal(t, 1, got.NeedsReview)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Errors, 1)
	assert.Contains(t, got.Errors[0], "provider timeout")

	t.Run("terminal runs are immutable", func(t *testing.T) {
		err := store.CompleteSyncRun("run-1", final, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not in progress")

		err = store.FailSyncRun("run-1", "late failure", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not in progress")

		// Counter updates on terminal runs are silently dropped
		require.NoError(t, store.UpdateSyncRunCounters("run-1", Counters{}))
		got, err := store.GetSyncRun("run-1")
		require.NoError(t, err)
		assert.Equal(t, 7, got.TransactionsImported)
	})
}

func TestStorage_FailSyncRun_KeepsCounters(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")

	run := &SyncRun{ID: "run-1", ConnectionID: "conn-1", Kind: RunKindIncremental}
	require.NoError(t, store.CreateSyncRun(run))
	require.NoError(t, store.UpdateSyncRunCounters("run-1", Counters{
		AccountsSynced:       1,
		TransactionsFetched:  5,
		TransactionsImported: 3,
	}))

	require.NoError(t, store.FailSyncRun("run-1", "connection check failed", []string{"transaction tx-9: bad data"}))

	got, err := store.GetSyncRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "connection check failed", got.ErrorMessage)
	assert.Equal(t, 3, got.TransactionsImported, "progress before the failure is kept")
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Errors, 1)
}

func TestStorage_ListSyncRuns(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		run := &SyncRun{
			ID:           id,
			ConnectionID: "conn-1",
			Kind:         RunKindFull,
			StartedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.CreateSyncRun(run))
	}

	runs, err := store.ListSyncRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].ID, "newest first")
	assert.Equal(t, "run-2", runs[1].ID)
}

func TestStorage_GetStats(t *testing.T) {
	store := newTestStorage(t)
	seedConnection(t, store, "conn-1")
	seedAccount(t, store, "acct-1")
	seedLinkedAccount(t, store, "la-1", "conn-1", "ext-1", nil)

	completed := &SyncRun{ID: "run-ok", ConnectionID: "conn-1", Kind: RunKindFull}
	require.NoError(t, store.CreateSyncRun(completed))
	require.NoError(t, store.CompleteSyncRun("run-ok", Counters{
		TransactionsImported: 4,
		DuplicatesDetected:   1,
	}, nil))

	failed := &SyncRun{ID: "run-bad", ConnectionID: "conn-1", Kind: RunKindFull}
	require.NoError(t, store.CreateSyncRun(failed))
	require.NoError(t, store.FailSyncRun("run-bad", "provider down", nil))

	review := &ExternalTransaction{
		ConnectionID:    "conn-1",
		LinkedAccountID: "la-1",
		ExternalID:      "tx-review",
		Date:            time.Now(),
		Amount:          -10,
		NeedsReview:     true,
	}
	require.NoError(t, store.SaveExternalTransaction(review))

	imported := &LocalTransaction{
		ID: "tx-imported", AccountID: "acct-1", UserID: "user-1",
		Date: time.Now(), Amount: -42.50, Description: "Imported",
		Type: TransactionTypeExpense, Status: TransactionStatusCleared,
		FromBank: true,
	}
	require.NoError(t, store.CreateLocalTransaction(imported))
	seedLocalTransaction(t, store, "tx-manual", "acct-1", time.Now(), -100.00, "Manual")

	stats, err := store.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.CompletedRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Equal(t, 4, stats.TransactionsImported)
	assert.Equal(t, 1, stats.DuplicatesDetected)
	assert.Equal(t, 1, stats.PendingReview)
	assert.InDelta(t, -42.50, stats.TotalImportedAmount, 0.001, "only bank-sourced rows count")
}
