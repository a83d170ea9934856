package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/platform/messaging/producers"
	"github.com/rehive/adapter-framework/internal/platform/metrics"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
)

// JobService dispatches jobs to the engine. It returns an error only when
// the job should be delivered again; outcomes that a redelivery cannot change
// are logged and acknowledged.
type JobService struct {
	engine      Reconciler
	deadLetters producers.DeadLetterPublisher
	logger      *slog.Logger
}

func NewJobService(engine Reconciler, deadLetters producers.DeadLetterPublisher, logger *slog.Logger) *JobService {
	return &JobService{
		engine:      engine,
		deadLetters: deadLetters,
		logger:      logger.With("component", "job_service"),
	}
}

func (s *JobService) ProcessJob(ctx context.Context, j *job.Job) error {
	ctx = engine.WithCorrelationID(ctx, j.CorrelationID)
	logger := s.logger.With("job_id", j.ID.String(), "kind", string(j.Kind))
	if j.CorrelationID != "" {
		logger = logger.With("correlation_id", j.CorrelationID)
	}

	var outcome string
	var err error
	switch j.Kind {
	case job.KindReconcile:
		outcome, err = s.reconcile(ctx, logger, j)
	case job.KindWebhook:
		outcome, err = s.webhook(ctx, logger, j)
	default:
		outcome, err = s.deadLetter(ctx, logger, j, job.ErrUnknownKind)
	}

	metrics.JobsProcessed.WithLabelValues(string(j.Kind), outcome).Inc()
	return err
}

func (s *JobService) reconcile(ctx context.Context, logger *slog.Logger, j *job.Job) (string, error) {
	logger = logger.With("transaction_id", j.TransactionID.String(), "attempt", j.Attempt)

	tx, err := s.engine.UploadToPlatform(ctx, j.TransactionID, j.Attempt)
	switch {
	case err == nil:
		logger.Info("Reconcile job processed", "status", string(tx.Status))
		return "success", nil
	case errors.Is(err, &transaction.InvalidStateError{}):
		logger.Info("Transaction no longer needs reconciling", "reason", err.Error())
		return "skipped", nil
	case errors.Is(err, transaction.ErrTransactionNotFound{}):
		logger.Warn("Reconcile job for unknown transaction dropped")
		return "skipped", nil
	default:
		logger.Error("Failed to reconcile transaction", "error", err)
		return "failed", fmt.Errorf("reconcile %s failed: %w", j.TransactionID, err)
	}
}

func (s *JobService) webhook(ctx context.Context, logger *slog.Logger, j *job.Job) (string, error) {
	logger = logger.With("webhook_type", j.WebhookType, "receive_id", j.ReceiveID)

	tx, err := s.engine.IngestWebhook(ctx, j.WebhookType, j.ReceiveID, j.Payload)
	switch {
	case err == nil && tx == nil:
		return "skipped", nil
	case err == nil:
		logger.Info("Webhook processed", "transaction_id", tx.ID.String(), "status", string(tx.Status))
		return "success", nil
	case errors.Is(err, engine.ErrUnprocessable):
		return s.deadLetter(ctx, logger, j, err)
	default:
		logger.Error("Failed to process webhook", "error", err)
		return "failed", fmt.Errorf("webhook for %s failed: %w", j.ReceiveID, err)
	}
}

// deadLetter parks j on the DLQ. Only a failed publish makes the job be
// delivered again.
func (s *JobService) deadLetter(ctx context.Context, logger *slog.Logger, j *job.Job, cause error) (string, error) {
	logger.Warn("Job cannot be processed, dead lettering", "error", cause)
	if s.deadLetters == nil {
		return "dead_lettered", nil
	}

	value, err := json.Marshal(j)
	if err != nil {
		return "failed", fmt.Errorf("failed to marshal job for DLQ: %w", err)
	}
	if err := s.deadLetters.PublishToDLQ(ctx, j.Key(), value, cause.Error()); err != nil {
		if errors.Is(err, producers.ErrDLQDisabled) {
			return "dead_lettered", nil
		}
		logger.Error("Failed to dead letter job", "error", err)
		return "failed", fmt.Errorf("failed to dead letter job %s: %w", j.ID, err)
	}
	return "dead_lettered", nil
}
