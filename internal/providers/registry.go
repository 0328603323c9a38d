package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry manages all registered providers, keyed by provider type.
// Adding a data source means registering an implementation here; the
// orchestrator never changes.
type Registry struct {
	providers map[string]BankDataProvider
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewRegistry creates a new provider registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[string]BankDataProvider),
		logger:    logger,
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(provider BankDataProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = provider
	r.logger.Info("registered provider",
		slog.String("provider", name),
		slog.String("display_name", provider.DisplayName()),
	)

	return nil
}

// Get returns a provider by type tag
func (r *Registry) Get(name string) (BankDataProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}

	return provider, nil
}

// List returns the names of all registered providers
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// DefaultMaxPages bounds cursor-driven pagination so a misbehaving or
// looping cursor cannot hang a run.
const DefaultMaxPages = 50

// FetchAllTransactions drains a provider's transaction pages for one
// account, bounded by maxPages (0 means DefaultMaxPages).
func FetchAllTransactions(ctx context.Context, p BankDataProvider, connectionID, externalAccountID string, opts FetchOptions, maxPages int) ([]Transaction, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var all []Transaction
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.FetchTransactions(ctx, connectionID, externalAccountID, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch transactions page %d: %w", page+1, err)
		}

		all = append(all, result.Transactions...)

		if !result.HasMore || result.Cursor == "" || result.Cursor == opts.Cursor {
			return all, nil
		}
		opts.Cursor = result.Cursor
	}

	return nil, fmt.Errorf("pagination exceeded %d pages for account %s", maxPages, externalAccountID)
}
