// Package components assembles the reconciliation engine and its job
// processing stack from configuration, for the gateway, the workers and the
// admin CLI alike.
package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rehive/adapter-framework/internal/config"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/platform/messaging/producers"
	"github.com/rehive/adapter-framework/internal/provider"
	"github.com/rehive/adapter-framework/internal/provider/manual"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
	"github.com/rehive/adapter-framework/internal/reconciler/scheduler"
	"github.com/rehive/adapter-framework/internal/reconciler/service"
)

// AccountLister reads every configured account
type AccountLister interface {
	List(ctx context.Context) ([]*account.Account, error)
}

// NewProviderRegistry binds every provider integration this build ships with.
func NewProviderRegistry() (*provider.Registry, error) {
	return provider.NewRegistry(
		manual.New(),
	)
}

// LoadDirectory reads the accounts once and checks them against registry.
// Account changes take effect on restart.
func LoadDirectory(ctx context.Context, accounts AccountLister, registry *provider.Registry) (*account.Directory, error) {
	list, err := accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	dir, err := account.NewDirectory(list)
	if err != nil {
		return nil, fmt.Errorf("invalid account configuration: %w", err)
	}
	if err := registry.Validate(dir); err != nil {
		return nil, fmt.Errorf("accounts reference unknown providers: %w", err)
	}
	return dir, nil
}

// CreateEngine builds the engine. When failing on exhaustion is enabled the
// scheduler is told to fail transactions whose retries run out.
func CreateEngine(deps engine.Dependencies, retries *scheduler.Scheduler, cfg *config.Config, logger *slog.Logger) *engine.Engine {
	deps.Retries = retries
	eng := engine.New(deps, engine.NewPolicy(cfg.Policy.FastCompleteTypes), logger)

	if cfg.Retry.FailOnExhaustion {
		retries.OnExhausted(eng.FailExhausted)
		logger.Info("Transactions fail once retries are exhausted", "max_attempts", cfg.Retry.MaxAttempts)
	}
	return eng
}

// CreateJobProcessor wraps the job service in a worker pool, falling back to
// the bare service when the pool cannot be created.
func CreateJobProcessor(eng service.Reconciler, deadLetters producers.DeadLetterPublisher, cfg *config.Config, logger *slog.Logger) service.JobProcessor {
	baseService := service.NewJobService(eng, deadLetters, logger)

	workerPoolService, err := service.NewWorkerPoolJobService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool job service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
