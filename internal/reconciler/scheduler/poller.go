package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rehive/adapter-framework/internal/config"
	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/domain/retry"
)

// Poller claims due retries and enqueues a RECONCILE job for each
type Poller struct {
	repo         retry.Repository
	publisher    JobPublisher
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int
}

func NewPoller(cfg *config.RetryConfig, repo retry.Repository, publisher JobPublisher, logger *slog.Logger) *Poller {
	return &Poller{
		repo:         repo,
		publisher:    publisher,
		logger:       logger.With("component", "retry_poller"),
		pollInterval: cfg.PollingInterval,
		batchSize:    cfg.BatchSize,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting retry poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Retry poller stopping due to context cancellation")
			return
		case <-ticker.C:
			if _, err := p.dispatchDue(ctx); err != nil {
				p.logger.Error("Error during retry dispatch", "error", err)
			}
		}
	}
}

// dispatchDue publishes every claimed retry and reports how many were
// published. A retry whose job could not be published goes back to pending.
func (p *Poller) dispatchDue(ctx context.Context) (int, error) {
	due, err := p.repo.ClaimDue(ctx, time.Now().UTC(), p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to claim due retries: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	p.logger.Debug("Claimed due retries", "count", len(due))

	published := 0
	for _, r := range due {
		j := job.NewReconcile(r.TransactionID, r.Attempts, "")
		if err := p.publisher.PublishJob(ctx, j); err != nil {
			p.logger.Error("Failed to publish reconcile job, releasing retry",
				"transaction_id", r.TransactionID.String(),
				"attempt", r.Attempts,
				"error", err,
			)
			if relErr := p.repo.Release(ctx, r.ID, err.Error()); relErr != nil {
				p.logger.Error("Failed to release retry", "retry_id", r.ID, "error", relErr)
			}
			continue
		}
		published++
		p.logger.Info("Reconcile job published",
			"transaction_id", r.TransactionID.String(),
			"attempt", r.Attempts,
			"job_id", j.ID.String(),
		)
	}
	return published, nil
}
