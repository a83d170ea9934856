package job

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind selects the engine step a job drives.
type Kind string

const (
	// KindReconcile re-runs upload and confirm for a transaction.
	KindReconcile Kind = "RECONCILE"
	// KindWebhook interprets a provider notification.
	KindWebhook Kind = "WEBHOOK"
)

var (
	ErrUnknownKind      = errors.New("unknown job kind")
	ErrMissingTarget    = errors.New("reconcile job requires a transaction id")
	ErrMissingReceiveID = errors.New("webhook job requires a receive id")
)

// Job defines a Kafka message for the reconciler workers
type Job struct {
	ID            uuid.UUID       `json:"id"`
	Kind          Kind            `json:"kind"`
	TransactionID uuid.UUID       `json:"transaction_id,omitempty"`
	Attempt       int             `json:"attempt"`
	WebhookType   string          `json:"webhook_type,omitempty"`
	ReceiveID     string          `json:"receive_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}

// NewReconcile builds a job re-running the platform pipeline.
func NewReconcile(transactionID uuid.UUID, attempt int, correlationID string) *Job {
	return &Job{
		ID:            uuid.New(),
		Kind:          KindReconcile,
		TransactionID: transactionID,
		Attempt:       attempt,
		CorrelationID: correlationID,
		EnqueuedAt:    time.Now(),
	}
}

// NewWebhook builds a job carrying a provider notification.
func NewWebhook(webhookType, receiveID string, payload json.RawMessage, correlationID string) (*Job, error) {
	if receiveID == "" {
		return nil, ErrMissingReceiveID
	}
	return &Job{
		ID:            uuid.New(),
		Kind:          KindWebhook,
		WebhookType:   webhookType,
		ReceiveID:     receiveID,
		Payload:       payload,
		CorrelationID: correlationID,
		EnqueuedAt:    time.Now(),
	}, nil
}

// Key is the partition key; jobs sharing a key are consumed in order.
func (j *Job) Key() string {
	if j.Kind == KindWebhook {
		return "receive:" + j.ReceiveID
	}
	return j.TransactionID.String()
}

// Validate checks that the job carries what its kind needs.
func (j *Job) Validate() error {
	switch j.Kind {
	case KindReconcile:
		if j.TransactionID == uuid.Nil {
			return ErrMissingTarget
		}
	case KindWebhook:
		if j.ReceiveID == "" {
			return ErrMissingReceiveID
		}
	default:
		return ErrUnknownKind
	}
	return nil
}
