package scheduler

import (
	"context"

	"github.com/rehive/adapter-framework/internal/domain/job"
)

// JobPublisher enqueues reconciler jobs
type JobPublisher interface {
	PublishJob(ctx context.Context, j *job.Job) error
}

// AlertPublisher raises operator alerts on the dead letter topic
type AlertPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
}
