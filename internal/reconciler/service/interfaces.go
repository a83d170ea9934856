package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
)

// JobProcessor runs one reconciler job to completion.
type JobProcessor interface {
	ProcessJob(ctx context.Context, j *job.Job) error
}

// Reconciler is the part of the engine jobs drive.
type Reconciler interface {
	UploadToPlatform(ctx context.Context, id uuid.UUID, attempt int) (*transaction.Transaction, error)
	IngestWebhook(ctx context.Context, webhookType, receiveID string, payload json.RawMessage) (*transaction.Transaction, error)
}
