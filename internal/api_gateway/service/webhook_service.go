package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/platform/messaging/producers"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
)

// WebhookServiceImpl implements the WebhookService interface
type WebhookServiceImpl struct {
	jobs   producers.JobPublisher
	logger *slog.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(logger *slog.Logger, jobs producers.JobPublisher) WebhookService {
	return &WebhookServiceImpl{
		jobs:   jobs,
		logger: logger,
	}
}

// EnqueueWebhook publishes a WEBHOOK job keyed by the receive id. It returns
// job.ErrMissingReceiveID without publishing anything when receiveID is empty.
func (s *WebhookServiceImpl) EnqueueWebhook(ctx context.Context, webhookType, receiveID string, payload json.RawMessage) (*job.Job, error) {
	j, err := job.NewWebhook(webhookType, receiveID, payload, engine.CorrelationID(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.jobs.PublishJob(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to enqueue webhook %s: %w", receiveID, err)
	}

	s.logger.Info("Webhook enqueued",
		"job_id", j.ID.String(),
		"webhook_type", webhookType,
		"receive_id", receiveID,
	)
	return j, nil
}
