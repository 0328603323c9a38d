package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerlink/banksync/internal/api"
	"github.com/ledgerlink/banksync/internal/application/service"
	"github.com/ledgerlink/banksync/internal/infrastructure/config"
	"github.com/ledgerlink/banksync/internal/infrastructure/logging"
	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
	"github.com/ledgerlink/banksync/internal/providers"
	plaidprovider "github.com/ledgerlink/banksync/internal/providers/plaid"
	"github.com/ledgerlink/banksync/internal/providers/sandbox"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file path")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)

	loggingCfg := cfg.Observability.Logging
	if *verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		logger.Error("Failed to build provider registry", "error", err)
		os.Exit(1)
	}

	syncService := service.NewSyncService(cfg, registry, store, logger)

	serverCfg := api.DefaultConfig()
	if cfg.Server.Port != 0 {
		serverCfg.Port = cfg.Server.Port
	}
	if len(cfg.Server.AllowedOrigins) > 0 {
		serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	server := api.NewServer(serverCfg, store, syncService, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("Received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
			os.Exit(1)
		}
	}
}

// buildRegistry registers every provider the config enables. The sandbox
// provider is always available so the API works without Plaid credentials.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry(logger)

	if err := registry.Register(sandbox.NewProvider()); err != nil {
		return nil, err
	}

	if cfg.Plaid.ClientID != "" && cfg.Plaid.Secret != "" {
		client, err := plaidprovider.NewClient(cfg.Plaid.ClientID, cfg.Plaid.Secret, cfg.Plaid.Environment)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(plaidprovider.NewProvider(client, plaidprovider.EnvTokenSource{})); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("Plaid credentials not configured, provider disabled")
	}

	return registry, nil
}
