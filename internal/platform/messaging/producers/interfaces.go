package producers

import (
	"context"

	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/segmentio/kafka-go"
)

// JobPublisher enqueues reconciler jobs on the job topic
type JobPublisher interface {
	PublishJob(ctx context.Context, j *job.Job) error
	Close() error
}

// DeadLetterPublisher handles publishing messages to a Dead Letter Queue
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
