// Package sweeper periodically reports transactions that stayed
// non-terminal for longer than the retry horizon allows.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rehive/adapter-framework/internal/config"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/platform/metrics"
	"github.com/robfig/cron/v3"
)

// StaleLister finds open transactions not touched since a cutoff.
type StaleLister interface {
	ListStale(ctx context.Context, before time.Time, limit int) ([]*transaction.Transaction, error)
}

// Sweeper runs the stale transaction report on a cron schedule.
type Sweeper struct {
	cron       *cron.Cron
	repo       StaleLister
	schedule   string
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
	logger     *slog.Logger
}

func New(cfg *config.SweeperConfig, repo StaleLister, logger *slog.Logger) *Sweeper {
	logger = logger.With("component", "sweeper")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))

	return &Sweeper{
		cron:       cron.New(cron.WithChain(cron.Recover(cronLogger))),
		repo:       repo,
		schedule:   cfg.Schedule,
		staleAfter: cfg.StaleAfter,
		batchSize:  cfg.BatchSize,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// Start registers the sweep and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("failed to schedule stale sweep %q: %w", s.schedule, err)
	}
	s.logger.Info("Scheduled stale transaction sweep", "schedule", s.schedule, "stale_after", s.staleAfter.String())
	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Sweeper) run() {
	if _, err := s.Sweep(context.Background()); err != nil {
		s.logger.Error("Stale transaction sweep failed", "error", err)
	}
}

// Sweep reports stale transactions and refreshes the per-status gauge.
func (s *Sweeper) Sweep(ctx context.Context) (map[transaction.Status]int, error) {
	now := s.now()
	stale, err := s.repo.ListStale(ctx, now.Add(-s.staleAfter), s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale transactions: %w", err)
	}

	counts := make(map[transaction.Status]int, len(transaction.NonTerminalStatuses))
	for _, tx := range stale {
		counts[tx.Status]++
		s.logger.Warn("Transaction stuck",
			"transaction_id", tx.ID.String(),
			"type", string(tx.Type),
			"status", string(tx.Status),
			"platform_code", tx.PlatformCode,
			"idle_for", now.Sub(tx.UpdatedAt).Round(time.Second).String(),
		)
	}

	for _, status := range transaction.NonTerminalStatuses {
		metrics.StaleTransactions.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	if len(stale) == s.batchSize {
		s.logger.Warn("Stale sweep hit its batch size, counts are a lower bound", "batch_size", s.batchSize)
	}
	return counts, nil
}
