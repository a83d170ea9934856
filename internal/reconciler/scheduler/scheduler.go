// Package scheduler turns platform transport failures into durable, spaced
// reconciliation attempts and dispatches them when they fall due.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/config"
	"github.com/rehive/adapter-framework/internal/domain/retry"
	"github.com/rehive/adapter-framework/internal/platform/metrics"
)

const exhaustedReason = "retries_exhausted"

// ExhaustionHandler is told about a transaction whose retry budget ran out.
type ExhaustionHandler func(ctx context.Context, transactionID uuid.UUID, cause error) error

// Scheduler stores the next attempt owed to a transaction
type Scheduler struct {
	repo        retry.Repository
	alerts      AlertPublisher
	onExhausted ExhaustionHandler
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewScheduler(cfg *config.RetryConfig, repo retry.Repository, alerts AlertPublisher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		repo:        repo,
		alerts:      alerts,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With("component", "retry_scheduler"),
	}
}

// OnExhausted registers fn to run after a transaction's retries are marked
// exhausted, e.g. to fail it.
func (s *Scheduler) OnExhausted(fn ExhaustionHandler) {
	s.onExhausted = fn
}

// ScheduleRetry arranges attempt number attempt one backoff from now, or
// records exhaustion once attempt exceeds the configured maximum.
func (s *Scheduler) ScheduleRetry(ctx context.Context, transactionID uuid.UUID, attempt int, cause error) error {
	if attempt > s.maxAttempts {
		return s.exhaust(ctx, transactionID, attempt-1, cause)
	}

	due := s.now().Add(s.backoff)
	if err := s.repo.Schedule(ctx, retry.New(transactionID, attempt, due, cause)); err != nil {
		return fmt.Errorf("failed to schedule attempt %d: %w", attempt, err)
	}

	metrics.RetriesScheduled.Inc()
	s.logger.Info("Retry scheduled",
		"transaction_id", transactionID.String(),
		"attempt", attempt,
		"max_attempts", s.maxAttempts,
		"next_attempt_at", due,
	)
	return nil
}

func (s *Scheduler) exhaust(ctx context.Context, transactionID uuid.UUID, attempts int, cause error) error {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}

	if err := s.repo.MarkExhausted(ctx, transactionID, lastError); err != nil {
		return fmt.Errorf("failed to mark retries exhausted: %w", err)
	}

	metrics.RetriesExhausted.Inc()
	s.logger.Error("Retries exhausted, transaction needs operator attention",
		"transaction_id", transactionID.String(),
		"attempts", attempts,
		"error", lastError,
	)

	if s.alerts != nil {
		alert, err := json.Marshal(struct {
			TransactionID string `json:"transaction_id"`
			Attempts      int    `json:"attempts"`
			LastError     string `json:"last_error"`
		}{transactionID.String(), attempts, lastError})
		if err == nil {
			err = s.alerts.PublishToDLQ(ctx, transactionID.String(), alert, exhaustedReason)
		}
		if err != nil {
			s.logger.Error("Failed to publish exhaustion alert", "transaction_id", transactionID.String(), "error", err)
		}
	}

	if s.onExhausted != nil {
		if err := s.onExhausted(ctx, transactionID, cause); err != nil {
			return fmt.Errorf("exhaustion handler failed: %w", err)
		}
	}
	return nil
}

// CancelRetries drops any pending or dispatched attempt.
func (s *Scheduler) CancelRetries(ctx context.Context, transactionID uuid.UUID) error {
	if err := s.repo.Cancel(ctx, transactionID); err != nil {
		return fmt.Errorf("failed to cancel retries: %w", err)
	}
	return nil
}
