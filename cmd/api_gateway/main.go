package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rehive/adapter-framework/internal/api_gateway"
	"github.com/rehive/adapter-framework/internal/api_gateway/service"
	"github.com/rehive/adapter-framework/internal/config"
	"github.com/rehive/adapter-framework/internal/data/mongo"
	"github.com/rehive/adapter-framework/internal/data/postgres"
	"github.com/rehive/adapter-framework/internal/logger"
	"github.com/rehive/adapter-framework/internal/platform/ledgerapi"
	"github.com/rehive/adapter-framework/internal/platform/messaging/producers"
	"github.com/rehive/adapter-framework/internal/platform/persistence"
	"github.com/rehive/adapter-framework/internal/reconciler/components"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
	"github.com/rehive/adapter-framework/internal/reconciler/scheduler"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context. The gateway owns schema migrations.
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers: webhook jobs and retry exhaustion alerts
	jobProducer, err := producers.NewJobProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize job Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	userRepo := postgres.NewUserRepository(log, postgresDB)
	retryRepo := postgres.NewRetryRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())
	if err := auditRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to create audit indexes", "error", err)
		os.Exit(1)
	}

	// Load accounts and bind them to providers
	registry, err := components.NewProviderRegistry()
	if err != nil {
		log.Error("Failed to register providers", "error", err)
		os.Exit(1)
	}
	directory, err := components.LoadDirectory(appCtx, accountRepo, registry)
	if err != nil {
		log.Error("Failed to load account directory", "error", err)
		os.Exit(1)
	}

	// Initialize the engine
	platform := ledgerapi.NewClient(cfg.Platform, log)
	retries := scheduler.NewScheduler(&cfg.Retry, retryRepo, dlqProducer, log)
	eng := components.CreateEngine(engine.Dependencies{
		Transactions: transactionRepo,
		Users:        userRepo,
		Accounts:     directory,
		Providers:    registry,
		Platform:     platform,
		Locker:       persistence.NewAdvisoryLocker(postgresDB.Pool(), log),
		Audit:        auditRepo,
	}, retries, cfg, log)

	// Initialize services
	services := api_gateway.Services{
		Transactions: service.NewTransactionService(log, eng, auditRepo),
		Operating:    service.NewOperatingService(directory, registry),
		Webhooks:     service.NewWebhookService(log, jobProducer),
		Auth:         service.NewAuthService(log, platform, userRepo, cfg.Platform.Company),
	}

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, services)
	log.Info("REST server initialized", "accounts", len(directory.All()))

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so in-flight requests can still reach the stores
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = jobProducer.Close(); err != nil {
		log.Error("Error closing job Kafka producer", "error", err)
	}

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
