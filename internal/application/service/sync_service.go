// Package service coordinates background sync execution for the API
// layer: one sync at a time per connection, triggered fire-and-forget and
// observed by polling the sync run record.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	appsync "github.com/ledgerlink/banksync/internal/application/sync"
	"github.com/ledgerlink/banksync/internal/infrastructure/config"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
	"github.com/ledgerlink/banksync/internal/providers"
)

// Sentinel errors so the API layer can map TriggerSync failures to the
// right status code.
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrSyncInProgress     = errors.New("sync already running")
)

// SyncService manages background sync runs.
type SyncService struct {
	cfg      *config.Config
	registry *providers.Registry
	repo     storage.Repository
	logger   *slog.Logger

	// Connection-level locking (only one sync per connection at a time)
	connLocks  map[string]*sync.Mutex
	locksMutex sync.Mutex

	// Cancel funcs of in-flight runs, keyed by run ID
	active      map[string]context.CancelFunc
	activeMutex sync.Mutex
}

// NewSyncService creates a new sync service.
func NewSyncService(cfg *config.Config, registry *providers.Registry, repo storage.Repository, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		cfg:       cfg,
		registry:  registry,
		repo:      repo,
		logger:    logger,
		connLocks: make(map[string]*sync.Mutex),
		active:    make(map[string]context.CancelFunc),
	}
}

// TriggerSync starts a sync run for a connection and returns its run ID
// without waiting for it to finish. The run record is created before this
// returns, so the ID can be polled right away.
//
// Note: the passed context is NOT used as the parent for the background
// work. Background runs derive from context.Background() so they are not
// cancelled when the HTTP request completes; use CancelRun to stop one.
func (s *SyncService) TriggerSync(_ context.Context, connectionID string, opts appsync.Options) (string, error) {
	conn, err := s.repo.GetConnection(connectionID)
	if err != nil {
		return "", fmt.Errorf("failed to load connection: %w", err)
	}
	if conn == nil {
		return "", fmt.Errorf("connection %s: %w", connectionID, ErrConnectionNotFound)
	}

	provider, err := s.registry.Get(conn.ProviderType)
	if err != nil {
		return "", err
	}

	if !s.tryLockConnection(connectionID) {
		return "", fmt.Errorf("connection %s: %w", connectionID, ErrSyncInProgress)
	}

	orchestrator := appsync.NewOrchestrator(provider, s.repo, s.orchestratorConfig(), s.logger)

	run, err := orchestrator.PrepareRun(connectionID, opts)
	if err != nil {
		s.unlockConnection(connectionID)
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.activeMutex.Lock()
	s.active[run.ID] = cancel
	s.activeMutex.Unlock()

	go func() {
		defer s.unlockConnection(connectionID)
		defer func() {
			cancel()
			s.activeMutex.Lock()
			delete(s.active, run.ID)
			s.activeMutex.Unlock()
		}()

		if _, err := orchestrator.ExecuteRun(runCtx, run, opts); err != nil {
			// Terminal status and error detail are already recorded on the
			// run itself.
			s.logger.Warn("Background sync finished with error", "run_id", run.ID, "error", err)
		}
	}()

	s.logger.Info("Sync triggered",
		"run_id", run.ID,
		"connection_id", connectionID,
		"provider", provider.Name(),
		"kind", run.Kind,
	)

	return run.ID, nil
}

// CancelRun cancels an in-flight run. The run will end FAILED with a
// context cancellation error.
func (s *SyncService) CancelRun(runID string) error {
	s.activeMutex.Lock()
	cancel, ok := s.active[runID]
	s.activeMutex.Unlock()

	if !ok {
		return fmt.Errorf("run %s is not in flight", runID)
	}

	cancel()
	s.logger.Info("Sync run cancelled", "run_id", runID)
	return nil
}

// IsRunning reports whether a sync is currently in flight for the
// connection.
func (s *SyncService) IsRunning(connectionID string) bool {
	s.locksMutex.Lock()
	lock, exists := s.connLocks[connectionID]
	s.locksMutex.Unlock()

	if !exists {
		return false
	}
	if lock.TryLock() {
		lock.Unlock()
		return false
	}
	return true
}

func (s *SyncService) orchestratorConfig() appsync.Config {
	cfg := appsync.Config{}
	if s.cfg != nil {
		cfg.LookbackDays = s.cfg.Sync.DefaultLookbackDays
		cfg.AccountDelay = s.cfg.Sync.AccountDelay()
		cfg.MaxPages = s.cfg.Sync.MaxPages
	}
	return cfg
}

// tryLockConnection attempts to acquire the per-connection lock.
func (s *SyncService) tryLockConnection(connectionID string) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if _, exists := s.connLocks[connectionID]; !exists {
		s.connLocks[connectionID] = &sync.Mutex{}
	}

	return s.connLocks[connectionID].TryLock()
}

// unlockConnection releases the per-connection lock.
func (s *SyncService) unlockConnection(connectionID string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.connLocks[connectionID]; exists {
		lock.Unlock()
	}
}
