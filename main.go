package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-analytics-service/config"
	"stock-analytics-service/internal/analytics"
	"stock-analytics-service/internal/api"
	"stock-analytics-service/internal/cache"
	"stock-analytics-service/internal/database"
	"stock-analytics-service/internal/logging"
	"stock-analytics-service/internal/marketdata"
	"stock-analytics-service/internal/scheduler"
	"stock-analytics-service/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LoggingConfig)
	logger.Info().Msg("starting stock analytics service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market data credentials come from Vault, with the config value as
	// the development fallback.
	vaultClient, err := vault.NewClient(cfg.VaultConfig, cfg.MarketDataConfig.APIKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create vault client")
	}
	apiKey, err := vaultClient.MarketDataAPIKey(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve market data API key")
	}

	source := marketdata.NewClient(apiKey, cfg.MarketDataConfig.BaseURL, cfg.MarketDataConfig.RequestsPerMinute, logger)

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := database.NewRepository(db)

	var barCache *cache.BarCache
	if cfg.RedisConfig.Enabled {
		barCache, err = cache.NewBarCache(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("bar cache disabled")
			barCache = nil
		} else {
			defer barCache.Close()
		}
	}

	hub := api.NewWSHub(logger)
	go hub.Run()

	var runnerCache analytics.Cache
	if barCache != nil {
		runnerCache = barCache
	}

	runner := analytics.NewRunner(
		source,
		repo,
		runnerCache,
		hub,
		cfg.AnalyticsConfig.Symbols,
		cfg.AnalyticsConfig.Workers,
		logger,
	)

	var sched *scheduler.Scheduler
	if cfg.SchedulerConfig.Enabled {
		sched = scheduler.NewScheduler(ctx, runner, cfg.SchedulerConfig, logger)
		if err := sched.RegisterAll(); err != nil {
			logger.Fatal().Err(err).Msg("failed to register scheduled tasks")
		}
		sched.Start()
	}

	server := api.NewServer(cfg.ServerConfig, repo, runner, barCache, vaultClient, hub, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error shutting down HTTP server")
	}
	if sched != nil {
		sched.Stop()
	}

	logger.Info().Msg("shutdown complete")
}
