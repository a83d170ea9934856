package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/platform/messaging/producers"
	"github.com/rehive/adapter-framework/internal/reconciler/service"
)

// JobHandler decodes job messages from Kafka and hands them to the processor
type JobHandler struct {
	processor service.JobProcessor
	producer  producers.DeadLetterPublisher
	logger    *slog.Logger
}

func NewJobHandler(logger *slog.Logger, processor service.JobProcessor, producer producers.DeadLetterPublisher) *JobHandler {
	return &JobHandler{
		processor: processor,
		producer:  producer,
		logger:    logger.With("component", "job_handler"),
	}
}

// HandleMessage processes one Kafka message. Undecodable messages are dead
// lettered and acknowledged.
func (h *JobHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var j job.Job
	if err := json.Unmarshal(value, &j); err != nil {
		return h.reject(ctx, key, value, fmt.Errorf("failed to unmarshal job: %w", err))
	}
	if err := j.Validate(); err != nil {
		return h.reject(ctx, key, value, fmt.Errorf("invalid job: %w", err))
	}

	h.logger.Debug("Received job", "job_id", j.ID.String(), "kind", string(j.Kind), "attempt", j.Attempt)
	return h.processor.ProcessJob(ctx, &j)
}

func (h *JobHandler) reject(ctx context.Context, key, value []byte, cause error) error {
	h.logger.Error("Unprocessable job message", "message_key", string(key), "error", cause)
	if h.producer == nil {
		return nil
	}

	if err := h.producer.PublishToDLQ(ctx, string(key), value, cause.Error()); err != nil {
		if errors.Is(err, producers.ErrDLQDisabled) {
			return nil
		}
		h.logger.Error("Failed to publish message to DLQ", "message_key", string(key), "dlq_error", err)
		return fmt.Errorf("dead lettering %s failed: %w", string(key), err)
	}
	return nil
}
