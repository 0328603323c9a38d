// Package reconciler corrects account baseline balances against the
// provider's reported balance.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
	"github.com/ledgerlink/banksync/internal/providers"
)

// Reconciler aligns a local account's computed balance with the balance
// the provider reports. It adjusts only the account baseline, never
// individual transaction rows, so that afterwards
// baseline + sum(local transactions) == reported balance.
type Reconciler struct {
	provider providers.BankDataProvider
	repo     storage.Repository
	logger   *slog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(provider providers.BankDataProvider, repo storage.Repository, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{provider: provider, repo: repo, logger: logger}
}

// Reconcile fetches the provider-reported balance for the external account
// and rewrites the local account's baseline. Reconciliation is best-effort:
// the caller logs the returned error and moves on, it never affects run
// status.
func (r *Reconciler) Reconcile(ctx context.Context, connectionID, externalAccountID, localAccountID string) error {
	accounts, err := r.provider.FetchAccounts(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("failed to fetch provider accounts: %w", err)
	}

	var reported *float64
	for _, acct := range accounts {
		if acct.ExternalAccountID == externalAccountID && acct.Balance != nil {
			v := acct.Balance.Current
			reported = &v
			break
		}
	}
	if reported == nil {
		return fmt.Errorf("provider reported no balance for account %s", externalAccountID)
	}

	sum, err := r.repo.SumTransactionAmounts(localAccountID)
	if err != nil {
		return fmt.Errorf("failed to sum local transactions: %w", err)
	}

	baseline := *reported - sum
	if err := r.repo.SetAccountBaseline(localAccountID, baseline); err != nil {
		return fmt.Errorf("failed to set account baseline: %w", err)
	}

	r.logger.Debug("reconciled account balance",
		"account_id", localAccountID,
		"reported_balance", *reported,
		"transaction_sum", sum,
		"baseline", baseline,
	)

	return nil
}
