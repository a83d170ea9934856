package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rehive/adapter-framework/internal/config"
	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/segmentio/kafka-go"
)

const headerJobKind = "job-kind"

// JobProducer writes reconciler jobs keyed so that jobs for one transaction
// land on one partition, in order.
type JobProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewJobProducer ensures the job topic exists and returns a synchronous
// producer: callers learn whether the broker accepted the job.
func NewJobProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*JobProducer, error) {
	if cfg.JobTopic == "" {
		return nil, fmt.Errorf("kafka job topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for job producer: %w", err)
	}
	defer conn.Close()

	if err := ensureTopic(conn, cfg.JobTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure job topic %s exists: %w", cfg.JobTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.JobTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &JobProducer{
		logger: logger.With("component", "job_producer"),
		writer: writer,
		topic:  cfg.JobTopic,
	}, nil
}

// PublishJob validates and writes j under j.Key().
func (p *JobProducer) PublishJob(ctx context.Context, j *job.Job) error {
	if err := j.Validate(); err != nil {
		return fmt.Errorf("refusing to publish invalid job: %w", err)
	}

	value, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job %s: %w", j.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(j.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: headerJobKind, Value: []byte(j.Kind)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish job",
			"topic", p.topic,
			"job_id", j.ID.String(),
			"kind", string(j.Kind),
			"key", j.Key(),
			"error", err,
		)
		return fmt.Errorf("failed to publish job to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published job",
		"topic", p.topic,
		"job_id", j.ID.String(),
		"kind", string(j.Kind),
		"key", j.Key(),
	)
	return nil
}

func (p *JobProducer) Close() error {
	p.logger.Info("Closing job producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close job writer for topic %s: %w", p.topic, err)
	}
	return nil
}
