package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsync "github.com/ledgerlink/banksync/internal/application/sync"
	"github.com/ledgerlink/banksync/internal/infrastructure/config"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
	"github.com/ledgerlink/banksync/internal/providers"
	"github.com/ledgerlink/banksync/internal/providers/sandbox"
)

// gatedProvider blocks FetchAccounts until released, to hold a background
// run in flight at a known point.
type gatedProvider struct {
	*sandbox.Provider
	release chan struct{}
}

func (g *gatedProvider) FetchAccounts(ctx context.Context, connectionID string) ([]providers.Account, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Provider.FetchAccounts(ctx, connectionID)
}

func newServiceFixture(t *testing.T, provider providers.BankDataProvider) (*SyncService, *storage.MockRepository) {
	t.Helper()

	repo := storage.NewMockRepository()
	require.NoError(t, repo.SaveConnection(&storage.Connection{
		ID:           "conn-1",
		UserID:       "user-1",
		Name:         "Demo Bank",
		ProviderType: provider.Name(),
		Status:       "active",
	}))

	registry := providers.NewRegistry(nil)
	require.NoError(t, registry.Register(provider))

	cfg := &config.Config{}
	cfg.Sync.DefaultLookbackDays = 7
	cfg.Sync.AccountDelayMS = 1
	cfg.Sync.MaxPages = 10

	return NewSyncService(cfg, registry, repo, nil), repo
}

func waitForTerminal(t *testing.T, repo *storage.MockRepository, runID string) *storage.SyncRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := repo.GetSyncRun(runID)
		require.NoError(t, err)
		require.NotNil(t, run)
		if run.Status != storage.RunStatusInProgress {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal status", runID)
	return nil
}

func TestTriggerSync_ReturnsRunIDImmediately(t *testing.T) {
	svc, repo := newServiceFixture(t, sandbox.NewSeededProvider("conn-1"))

	runID, err := svc.TriggerSync(context.Background(), "conn-1", appsync.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	// The run record exists before the trigger returns, so polling works
	// from the first request.
	run, err := repo.GetSyncRun(runID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "conn-1", run.ConnectionID)

	final := waitForTerminal(t, repo, runID)
	assert.Equal(t, storage.RunStatusCompleted, final.Status)
}

func TestTriggerSync_RejectsConcurrentRunForSameConnection(t *testing.T) {
	gate := &gatedProvider{Provider: sandbox.NewProvider(), release: make(chan struct{})}
	gate.AddAccount("conn-1", providers.Account{ExternalAccountID: "ext-1", Name: "Everyday"}, 100)
	svc, repo := newServiceFixture(t, gate)

	runID, err := svc.TriggerSync(context.Background(), "conn-1", appsync.Options{})
	require.NoError(t, err)
	assert.True(t, svc.IsRunning("conn-1"))

	_, err = svc.TriggerSync(context.Background(), "conn-1", appsync.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(gate.release)
	waitForTerminal(t, repo, runID)

	// Once the first run finishes the connection accepts a new trigger.
	deadline := time.Now().Add(5 * time.Second)
	for svc.IsRunning("conn-1") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	secondID, err := svc.TriggerSync(context.Background(), "conn-1", appsync.Options{})
	require.NoError(t, err)
	waitForTerminal(t, repo, secondID)
}

func TestTriggerSync_UnknownConnection(t *testing.T) {
	svc, _ := newServiceFixture(t, sandbox.NewProvider())

	_, err := svc.TriggerSync(context.Background(), "missing", appsync.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestTriggerSync_UnknownProviderType(t *testing.T) {
	svc, repo := newServiceFixture(t, sandbox.NewProvider())
	require.NoError(t, repo.SaveConnection(&storage.Connection{
		ID:           "conn-2",
		UserID:       "user-1",
		ProviderType: "teleporter",
	}))

	_, err := svc.TriggerSync(context.Background(), "conn-2", appsync.Options{})
	require.Error(t, err)
}

func TestCancelRun(t *testing.T) {
	gate := &gatedProvider{Provider: sandbox.NewProvider(), release: make(chan struct{})}
	gate.AddAccount("conn-1", providers.Account{ExternalAccountID: "ext-1", Name: "Everyday"}, 100)
	svc, repo := newServiceFixture(t, gate)

	runID, err := svc.TriggerSync(context.Background(), "conn-1", appsync.Options{})
	require.NoError(t, err)

	require.NoError(t, svc.CancelRun(runID))

	final := waitForTerminal(t, repo, runID)
	assert.Equal(t, storage.RunStatusFailed, final.Status)

	// Cancelling a finished run is an error.
	err = svc.CancelRun(runID)
	require.Error(t, err)
}

func TestCancelRun_UnknownRun(t *testing.T) {
	svc, _ := newServiceFixture(t, sandbox.NewProvider())
	require.Error(t, svc.CancelRun("nope"))
}
