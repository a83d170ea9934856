package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rehive/adapter-framework/internal/config"
	"github.com/rehive/adapter-framework/internal/data/mongo"
	"github.com/rehive/adapter-framework/internal/data/postgres"
	"github.com/rehive/adapter-framework/internal/logger"
	"github.com/rehive/adapter-framework/internal/platform/ledgerapi"
	"github.com/rehive/adapter-framework/internal/platform/messaging/consumers"
	"github.com/rehive/adapter-framework/internal/platform/messaging/producers"
	"github.com/rehive/adapter-framework/internal/platform/metrics"
	"github.com/rehive/adapter-framework/internal/platform/persistence"
	"github.com/rehive/adapter-framework/internal/reconciler/components"
	"github.com/rehive/adapter-framework/internal/reconciler/consumer"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
	"github.com/rehive/adapter-framework/internal/reconciler/scheduler"
	"github.com/rehive/adapter-framework/internal/reconciler/service"
	"github.com/rehive/adapter-framework/internal/reconciler/sweeper"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("reconciler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context. Migrations are applied by the gateway.
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres, persistence.WithoutMigrations())
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
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

	// Initialize Kafka clients
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

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

	// Initialize the engine and the retry machinery
	retries := scheduler.NewScheduler(&cfg.Retry, retryRepo, dlqProducer, log)
	eng := components.CreateEngine(engine.Dependencies{
		Transactions: transactionRepo,
		Users:        userRepo,
		Accounts:     directory,
		Providers:    registry,
		Platform:     ledgerapi.NewClient(cfg.Platform, log),
		Locker:       persistence.NewAdvisoryLocker(postgresDB.Pool(), log),
		Audit:        auditRepo,
	}, retries, cfg, log)
	poller := scheduler.NewPoller(&cfg.Retry, retryRepo, jobProducer, log)

	// Initialize job processing
	jobProcessor := components.CreateJobProcessor(eng, dlqProducer, cfg, log)
	jobHandler := consumer.NewJobHandler(log, jobProcessor, dlqProducer)

	staleSweeper := sweeper.New(&cfg.Sweeper, transactionRepo, log)
	metricsServer := metrics.NewServer(cfg.Metrics.Port)

	// Create error channel for service errors
	errChan := make(chan error, 3)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.JobTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, jobHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	// Start retry poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	if err := staleSweeper.Start(); err != nil {
		errChan <- fmt.Errorf("sweeper error: %w", err)
	}

	go func() {
		log.Info("Starting metrics server", "port", cfg.Metrics.Port)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for a running sweep to finish
	<-staleSweeper.Stop().Done()

	// Shutdown the worker pool if it's a WorkerPoolJobService
	if wpService, ok := jobProcessor.(*service.WorkerPoolJobService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err = metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping metrics server", "error", err)
	}

	if err = jobProducer.Close(); err != nil {
		log.Error("Error closing job Kafka producer", "error", err)
	}

	// Close DLQ Kafka producer. A nil producer closes cleanly.
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Reconciler shutdown with errors", "error", serviceErr)
		os.Exit(1)
	}
	log.Info("Reconciler shutdown completed successfully")
}
