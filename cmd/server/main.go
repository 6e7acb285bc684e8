// Package main provides the API server entry point for the paper trading service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paper-trader/internal/adapter"
	"github.com/paper-trader/internal/api"
	"github.com/paper-trader/internal/config"
	"github.com/paper-trader/internal/logging"
	"github.com/paper-trader/internal/service"
	"github.com/paper-trader/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize repositories
	userRepo := storage.NewUserRepository(postgres)
	portfolioRepo := storage.NewPortfolioRepository(postgres)
	ledgerRepo := storage.NewLedgerRepository(postgres, cfg.Trading.LockTimeout)
	txnRepo := storage.NewTransactionRepository(postgres)
	watchlistRepo := storage.NewWatchlistRepository(postgres)
	recommendationRepo := storage.NewRecommendationRepository(postgres)
	barRepo := storage.NewBarRepository(clickhouse)

	cacheService := storage.NewCacheService(redis, cfg.Cache.QuoteTTL)

	// Initialize upstream clients
	var quoteFetcher service.QuoteFetcher
	if cfg.Quote.PrimaryURL != "" {
		quoteClient, err := adapter.NewQuoteClient(&cfg.Quote)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create quote client")
		}
		quoteFetcher = quoteClient
	} else {
		logger.Warn("No quote source configured - quotes will be served from stored history only")
	}

	predictionClient := adapter.NewPredictionClient(&cfg.Prediction)

	// Initialize services
	logger.Info("Initializing services...")

	accountService, err := service.NewAccountService(userRepo, portfolioRepo, cacheService, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create account service")
	}

	ledgerService := service.NewLedgerService(ledgerRepo, portfolioRepo, txnRepo)
	quoteService := service.NewQuoteService(quoteFetcher, cacheService, barRepo, portfolioRepo)
	watchlistService := service.NewWatchlistService(watchlistRepo, quoteService)
	recommendationService := service.NewRecommendationService(
		predictionClient,
		recommendationRepo,
		portfolioRepo,
		cfg.Cache.RecommendationMaxAge,
	)

	startingCash, err := decimal.NewFromString(cfg.Trading.StartingCash)
	if err != nil {
		logger.WithError(err).Fatal("Invalid starting cash configuration")
	}
	auditService := service.NewConsistencyChecker(portfolioRepo, txnRepo, startingCash)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		FreeTierRPS:     cfg.RateLimit.FreeTier,
		PremiumTierRPS:  cfg.RateLimit.PremiumTier,
	}

	server := api.NewServer(
		serverConfig,
		accountService,
		ledgerService,
		quoteService,
		watchlistService,
		recommendationService,
		portfolioRepo,
		auditService,
	)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
