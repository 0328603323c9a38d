// Package sync runs the end-to-end sync pipeline for one connection:
// connectivity check, account discovery, paged transaction fetch,
// duplicate triage, import, and balance reconciliation.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlink/banksync/internal/domain/categorizer"
	"github.com/ledgerlink/banksync/internal/domain/duplicate"
	"github.com/ledgerlink/banksync/internal/domain/mapper"
	"github.com/ledgerlink/banksync/internal/domain/reconciler"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
	"github.com/ledgerlink/banksync/internal/providers"
)

// Config holds orchestrator tuning. Zero values fall back to the package
// defaults.
type Config struct {
	// LookbackDays is the fetch window for accounts that have never synced
	LookbackDays int
	// AccountDelay is the pause between per-account fetches
	AccountDelay time.Duration
	// MaxPages caps pagination per account
	MaxPages int
}

// Orchestrator runs the sync pipeline for a single provider.
type Orchestrator struct {
	provider   providers.BankDataProvider
	repo       storage.Repository
	detector   *duplicate.Detector
	mapper     *mapper.Mapper
	reconciler *reconciler.Reconciler

	lookbackDays int
	accountDelay time.Duration
	maxPages     int

	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator and wires up its domain
// components against the given repository.
func NewOrchestrator(provider providers.BankDataProvider, repo storage.Repository, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if cfg.AccountDelay <= 0 {
		cfg.AccountDelay = DefaultAccountDelay
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = providers.DefaultMaxPages
	}

	cat := categorizer.NewCategorizer(repo, logger)

	return &Orchestrator{
		provider:     provider,
		repo:         repo,
		detector:     duplicate.NewDetector(repo, logger),
		mapper:       mapper.NewMapper(cat),
		reconciler:   reconciler.NewReconciler(provider, repo, logger),
		lookbackDays: cfg.LookbackDays,
		accountDelay: cfg.AccountDelay,
		maxPages:     cfg.MaxPages,
		logger:       logger,
	}
}

// SyncConnection syncs all enabled accounts of a connection and blocks
// until the run reaches a terminal status.
func (o *Orchestrator) SyncConnection(ctx context.Context, connectionID string, opts Options) (*Result, error) {
	run, err := o.PrepareRun(connectionID, opts)
	if err != nil {
		return nil, err
	}
	return o.ExecuteRun(ctx, run, opts)
}

// PrepareRun creates the IN_PROGRESS run record before any network call, so
// callers that execute the run in the background can hand out the run id
// for polling immediately.
func (o *Orchestrator) PrepareRun(connectionID string, opts Options) (*storage.SyncRun, error) {
	conn, err := o.repo.GetConnection(connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection %s: %w", connectionID, err)
	}
	if conn == nil {
		return nil, fmt.Errorf("connection %s not found", connectionID)
	}

	kind := storage.RunKindIncremental
	if opts.ForceFull || conn.LastSyncAt == nil {
		kind = storage.RunKindFull
	}

	run := &storage.SyncRun{
		ID:           uuid.NewString(),
		ConnectionID: conn.ID,
		Kind:         kind,
		Status:       storage.RunStatusInProgress,
		StartedAt:    time.Now(),
	}
	if err := o.repo.CreateSyncRun(run); err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	return run, nil
}

// ExecuteRun drives a prepared run to a terminal status: COMPLETED when the
// pipeline ran to the end (even with per-account errors recorded), FAILED
// when a connection-level step made further progress impossible.
func (o *Orchestrator) ExecuteRun(ctx context.Context, run *storage.SyncRun, opts Options) (*Result, error) {
	result := &Result{SyncRunID: run.ID, Errors: []string{}}

	conn, err := o.repo.GetConnection(run.ConnectionID)
	if err == nil && conn == nil {
		err = fmt.Errorf("connection %s not found", run.ConnectionID)
	}
	if err != nil {
		if failErr := o.repo.FailSyncRun(run.ID, err.Error(), nil); failErr != nil {
			o.logger.Error("Failed to record run failure", "run_id", run.ID, "error", failErr)
		}
		return result, err
	}

	o.logger.Info("Starting sync",
		"run_id", run.ID,
		"connection_id", conn.ID,
		"provider", o.provider.DisplayName(),
		"kind", run.Kind,
	)

	if err := o.executeRun(ctx, conn, run.ID, opts, result); err != nil {
		if failErr := o.repo.FailSyncRun(run.ID, err.Error(), result.Errors); failErr != nil {
			o.logger.Error("Failed to record run failure", "run_id", run.ID, "error", failErr)
		}
		// Keep the last successful sync time; record only the error.
		if stateErr := o.repo.UpdateConnectionSyncState(conn.ID, nil, err.Error()); stateErr != nil {
			o.logger.Error("Failed to update connection state", "connection_id", conn.ID, "error", stateErr)
		}
		o.logger.Error("Sync failed", "run_id", run.ID, "error", err)
		return result, err
	}

	if err := o.repo.CompleteSyncRun(run.ID, result.counters(), result.Errors); err != nil {
		return result, fmt.Errorf("failed to complete sync run: %w", err)
	}
	now := time.Now()
	if err := o.repo.UpdateConnectionSyncState(conn.ID, &now, ""); err != nil {
		o.logger.Error("Failed to update connection state", "connection_id", conn.ID, "error", err)
	}

	o.logger.Info("Sync completed",
		"run_id", run.ID,
		"accounts_synced", result.AccountsSynced,
		"transactions_fetched", result.TransactionsFetched,
		"transactions_imported", result.TransactionsImported,
		"duplicates_detected", result.DuplicatesDetected,
		"needs_review", result.NeedsReview,
		"errors", len(result.Errors),
	)

	return result, nil
}

// executeRun is the fallible middle of SyncConnection. A returned error is
// fatal for the whole run; per-account and per-transaction problems are
// appended to result.Errors instead.
func (o *Orchestrator) executeRun(ctx context.Context, conn *storage.Connection, runID string, opts Options, result *Result) error {
	status, err := o.provider.TestConnection(ctx, conn.ID)
	if err != nil {
		return fmt.Errorf("connection check failed: %w", err)
	}
	if !status.IsValid {
		return fmt.Errorf("connection is not usable: %s", status.Error)
	}

	accounts, err := o.provider.FetchAccounts(ctx, conn.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch accounts: %w", err)
	}

	o.logger.Debug("Fetched provider accounts", "connection_id", conn.ID, "count", len(accounts))

	for _, acct := range accounts {
		la := &storage.LinkedAccount{
			ID:                uuid.NewString(),
			ConnectionID:      conn.ID,
			ExternalAccountID: acct.ExternalAccountID,
			Name:              acct.Name,
			Type:              acct.Type,
			Institution:       acct.Institution,
			Mask:              acct.Mask,
			SyncEnabled:       true,
		}
		if err := o.repo.UpsertLinkedAccount(la); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: upsert failed: %v", acct.ExternalAccountID, err))
		}
	}

	linked, err := o.repo.ListLinkedAccounts(conn.ID)
	if err != nil {
		return fmt.Errorf("failed to list linked accounts: %w", err)
	}

	first := true
	for _, la := range linked {
		if !la.SyncEnabled || la.LocalAccountID == nil {
			o.logger.Debug("Skipping account",
				"external_account_id", la.ExternalAccountID,
				"sync_enabled", la.SyncEnabled,
				"linked", la.LocalAccountID != nil,
			)
			continue
		}

		if !first {
			select {
			case <-time.After(o.accountDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		first = false

		if err := o.syncAccount(ctx, conn, la, opts, result); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("Account sync failed, continuing with next account",
				"external_account_id", la.ExternalAccountID,
				"error", err,
			)
			result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", la.ExternalAccountID, err))
			continue
		}

		result.AccountsSynced++

		if err := o.repo.UpdateLinkedAccountSyncTime(la.ID, time.Now()); err != nil {
			o.logger.Warn("Failed to record account sync time", "linked_account_id", la.ID, "error", err)
		}

		// Best-effort: a reconciliation problem never fails the account.
		if err := o.reconciler.Reconcile(ctx, conn.ID, la.ExternalAccountID, *la.LocalAccountID); err != nil {
			o.logger.Warn("Balance reconciliation failed",
				"external_account_id", la.ExternalAccountID,
				"error", err,
			)
		}

		// Keep counters fresh for pollers while the run is in progress.
		if err := o.repo.UpdateSyncRunCounters(runID, result.counters()); err != nil {
			o.logger.Warn("Failed to update run counters", "run_id", runID, "error", err)
		}
	}

	return nil
}

// syncAccount fetches and processes the transaction window of one linked
// account.
func (o *Orchestrator) syncAccount(ctx context.Context, conn *storage.Connection, la *storage.LinkedAccount, opts Options, result *Result) error {
	start, end := o.fetchWindow(la, opts)

	o.logger.Debug("Syncing account",
		"external_account_id", la.ExternalAccountID,
		"start_date", start.Format("2006-01-02"),
		"end_date", end.Format("2006-01-02"),
	)

	txs, err := providers.FetchAllTransactions(ctx, o.provider, conn.ID, la.ExternalAccountID, providers.FetchOptions{
		StartDate: start,
		EndDate:   end,
	}, o.maxPages)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}

	result.TransactionsFetched += len(txs)

	for _, tx := range txs {
		if err := o.processTransaction(conn, la, tx, result); err != nil {
			o.logger.Error("Failed to process transaction",
				"external_id", tx.ExternalID,
				"error", err,
			)
			result.Errors = append(result.Errors, fmt.Sprintf("transaction %s: %v", tx.ExternalID, err))
		}
	}

	return nil
}

// fetchWindow computes the [start, end] date range for one account.
// Explicit option dates win; otherwise an account that synced before gets
// an incremental window starting one day before its last sync, and a
// first-time (or forced-full) account gets the configured lookback.
func (o *Orchestrator) fetchWindow(la *storage.LinkedAccount, opts Options) (time.Time, time.Time) {
	end := time.Now()
	if opts.EndDate != nil {
		end = *opts.EndDate
	}

	if opts.StartDate != nil {
		return *opts.StartDate, end
	}

	if !opts.ForceFull && la.LastSyncAt != nil {
		return la.LastSyncAt.AddDate(0, 0, -lastSyncOverlapDays), end
	}

	return end.AddDate(0, 0, -o.lookbackDays), end
}

// processTransaction triages a single provider transaction: skip if already
// imported, auto-link to a confident local duplicate, park for review on a
// medium-confidence match, otherwise import as a new local transaction.
// triageAction is the import decision for one incoming transaction.
type triageAction int

const (
	triageImportNew triageAction = iota
	triageAutoLink
	triageNeedsReview
)

// triage applies the confidence thresholds to a detector result. Matches
// arrive ordered best first; only the best one decides the action.
func triage(matches []duplicate.Match) (triageAction, *duplicate.Match) {
	if len(matches) == 0 {
		return triageImportNew, nil
	}
	best := matches[0]
	switch {
	case best.Confidence >= duplicate.AutoLinkThreshold:
		return triageAutoLink, &best
	case best.Confidence >= duplicate.ReviewThreshold:
		return triageNeedsReview, &best
	default:
		return triageImportNew, nil
	}
}

func (o *Orchestrator) processTransaction(conn *storage.Connection, la *storage.LinkedAccount, tx providers.Transaction, result *Result) error {
	exists, err := o.repo.ExternalTransactionExists(tx.ExternalID)
	if err != nil {
		return fmt.Errorf("duplicate-id check failed: %w", err)
	}
	if exists {
		o.logger.Debug("Skipping already imported transaction", "external_id", tx.ExternalID)
		return nil
	}

	ext := &storage.ExternalTransaction{
		ConnectionID:     conn.ID,
		LinkedAccountID:  la.ID,
		ExternalID:       tx.ExternalID,
		Date:             tx.Date,
		Amount:           tx.Amount,
		Description:      tx.Description,
		MerchantName:     tx.MerchantName,
		ProviderCategory: tx.Category,
		BalanceAfter:     tx.BalanceAfter,
		Pending:          tx.Pending,
		ImportedAt:       time.Now(),
	}

	matches := o.detector.FindDuplicates(duplicate.Candidate{
		Date:        tx.Date,
		Amount:      tx.Amount,
		Description: tx.Description,
	}, *la.LocalAccountID)

	switch action, best := triage(matches); action {
	case triageAutoLink:
		if err := o.repo.MarkTransactionFromBank(best.LocalTransactionID); err != nil {
			return fmt.Errorf("failed to mark local transaction %s: %w", best.LocalTransactionID, err)
		}
		ext.IsDuplicate = true
		ext.DuplicateConfidence = &best.Confidence
		ext.LocalTransactionID = &best.LocalTransactionID
		if err := o.repo.SaveExternalTransaction(ext); err != nil {
			return fmt.Errorf("failed to save external transaction: %w", err)
		}
		result.DuplicatesDetected++

		o.logger.Debug("Auto-linked duplicate",
			"external_id", tx.ExternalID,
			"local_transaction_id", best.LocalTransactionID,
			"confidence", best.Confidence,
			"reason", best.Reason,
		)
		return nil

	case triageNeedsReview:
		ext.NeedsReview = true
		ext.DuplicateConfidence = &best.Confidence
		if err := o.repo.SaveExternalTransaction(ext); err != nil {
			return fmt.Errorf("failed to save external transaction: %w", err)
		}
		result.NeedsReview++

		o.logger.Debug("Flagged transaction for review",
			"external_id", tx.ExternalID,
			"candidate_local_id", best.LocalTransactionID,
			"confidence", best.Confidence,
		)
		return nil
	}

	local, err := o.mapper.MapToLocal(tx, *la.LocalAccountID, conn.UserID)
	if err != nil {
		return fmt.Errorf("failed to map transaction: %w", err)
	}
	if err := o.repo.CreateLocalTransaction(local); err != nil {
		return fmt.Errorf("failed to create local transaction: %w", err)
	}
	ext.LocalTransactionID = &local.ID
	if err := o.repo.SaveExternalTransaction(ext); err != nil {
		return fmt.Errorf("failed to save external transaction: %w", err)
	}
	result.TransactionsImported++

	return nil
}

// counters snapshots the result as run counters.
func (r *Result) counters() storage.Counters {
	return storage.Counters{
		AccountsSynced:       r.AccountsSynced,
		TransactionsFetched:  r.TransactionsFetched,
		TransactionsImported: r.TransactionsImported,
		DuplicatesDetected:   r.DuplicatesDetected,
		NeedsReview:          r.NeedsReview,
	}
}
