package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cvtailor/internal/cli"
	"cvtailor/internal/config"
	"cvtailor/internal/errors"
	"cvtailor/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	if err := config.ApplyVaultSecrets(ctx, cfg, logger); err != nil {
		logger.LogError(err, "Failed to load secrets from Vault")
		return 1
	}

	om, err := observability.NewObservabilityManager(
		observability.GetObservabilityConfig(cfg, cli.Version), cfg, logger)
	if err != nil {
		logger.LogError(err, "Failed to initialize observability")
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(shutdownCtx); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	}()

	logger.Debug("Starting cvtailor",
		"version", cli.Version,
		"log_level", cfg.App.LogLevel,
		"ai_provider", cfg.AI.Provider)

	if err := cli.Execute(ctx, cfg, logger, om); err != nil {
		logger.LogError(err, "Application execution failed")
		return 1
	}
	return 0
}

// loadConfig reads CVTAILOR_CONFIG when set, otherwise searches the default paths
func loadConfig() (*config.Config, error) {
	if path := os.Getenv(config.EnvPrefix + "_CONFIG"); path != "" {
		return config.LoadConfigFile(path)
	}
	return config.LoadConfig()
}
