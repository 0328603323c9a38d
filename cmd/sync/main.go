// Command sync runs a one-off sync for a single connection and prints the
// result. Intended for cron jobs and manual runs; the API server is the
// long-running surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	appsync "github.com/ledgerlink/banksync/internal/application/sync"
	"github.com/ledgerlink/banksync/internal/infrastructure/config"
	"github.com/ledgerlink/banksync/internal/infrastructure/logging"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
	"github.com/ledgerlink/banksync/internal/providers"
	plaidprovider "github.com/ledgerlink/banksync/internal/providers/plaid"
	"github.com/ledgerlink/banksync/internal/providers/sandbox"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Configuration file path")
		connectionID = flag.String("connection", "", "Connection ID to sync (required)")
		forceFull    = flag.Bool("full", false, "Force a full sync, ignoring last-sync times")
		startDate    = flag.String("start", "", "Window start (YYYY-MM-DD, overrides computed window)")
		endDate      = flag.String("end", "", "Window end (YYYY-MM-DD, default now)")
		timeout      = flag.Duration("timeout", 10*time.Minute, "Overall sync timeout")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if *connectionID == "" {
		fmt.Fprintln(os.Stderr, "usage: sync -connection <id> [-full] [-start YYYY-MM-DD] [-end YYYY-MM-DD]")
		os.Exit(2)
	}

	cfg := config.LoadOrEnvWithPath(*configFile)

	loggingCfg := cfg.Observability.Logging
	if *verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "sync")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	opts, err := buildOptions(*forceFull, *startDate, *endDate)
	if err != nil {
		logger.Error("Invalid arguments", "error", err)
		os.Exit(2)
	}

	conn, err := store.GetConnection(*connectionID)
	if err != nil {
		logger.Error("Failed to load connection", "error", err)
		os.Exit(1)
	}
	if conn == nil {
		logger.Error("Connection not found", "connection_id", *connectionID)
		os.Exit(1)
	}

	provider, err := resolveProvider(cfg, conn.ProviderType)
	if err != nil {
		logger.Error("Failed to resolve provider", "error", err)
		os.Exit(1)
	}

	orchestrator := appsync.NewOrchestrator(provider, store, appsync.Config{
		LookbackDays: cfg.Sync.DefaultLookbackDays,
		AccountDelay: cfg.Sync.AccountDelay(),
		MaxPages:     cfg.Sync.MaxPages,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := orchestrator.SyncConnection(ctx, *connectionID, opts)
	if err != nil {
		logger.Error("Sync failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Sync run %s completed\n", result.SyncRunID)
	fmt.Printf("  Accounts synced:      %d\n", result.AccountsSynced)
	fmt.Printf("  Transactions fetched: %d\n", result.TransactionsFetched)
	fmt.Printf("  Imported:             %d\n", result.TransactionsImported)
	fmt.Printf("  Duplicates linked:    %d\n", result.DuplicatesDetected)
	fmt.Printf("  Needs review:         %d\n", result.NeedsReview)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors (%d):\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}

func buildOptions(forceFull bool, startDate, endDate string) (appsync.Options, error) {
	opts := appsync.Options{ForceFull: forceFull}

	if startDate != "" {
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return opts, fmt.Errorf("invalid -start date: %w", err)
		}
		opts.StartDate = &start
	}
	if endDate != "" {
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return opts, fmt.Errorf("invalid -end date: %w", err)
		}
		opts.EndDate = &end
	}

	return opts, nil
}

// resolveProvider builds the provider the connection's stored type names.
func resolveProvider(cfg *config.Config, providerType string) (providers.BankDataProvider, error) {
	switch providerType {
	case "sandbox":
		return sandbox.NewProvider(), nil
	case "plaid":
		if cfg.Plaid.ClientID == "" || cfg.Plaid.Secret == "" {
			return nil, fmt.Errorf("plaid credentials not configured")
		}
		client, err := plaidprovider.NewClient(cfg.Plaid.ClientID, cfg.Plaid.Secret, cfg.Plaid.Environment)
		if err != nil {
			return nil, err
		}
		return plaidprovider.NewProvider(client, plaidprovider.EnvTokenSource{}), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
}
