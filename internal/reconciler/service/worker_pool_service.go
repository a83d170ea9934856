package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/rehive/adapter-framework/internal/domain/job"
)

// WorkerPoolJobService runs jobs of a base processor on a bounded pool.
type WorkerPoolJobService struct {
	base   JobProcessor
	pool   *ants.Pool
	logger *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolJobService(base JobProcessor, config WorkerPoolConfig, logger *slog.Logger) (*WorkerPoolJobService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &WorkerPoolJobService{
		base:   base,
		pool:   pool,
		logger: logger.With("component", "worker_pool"),
	}, nil
}

// ProcessJob submits j to the pool and waits for its result.
func (s *WorkerPoolJobService) ProcessJob(ctx context.Context, j *job.Job) error {
	result := make(chan error, 1)
	jobCopy := *j

	if err := s.pool.Submit(func() {
		result <- s.base.ProcessJob(ctx, &jobCopy)
	}); err != nil {
		s.logger.Error("Failed to submit job to worker pool", "job_id", j.ID.String(), "error", err)
		return fmt.Errorf("failed to submit job %s: %w", j.ID, err)
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolJobService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolJobService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolJobService) Capacity() int {
	return s.pool.Cap()
}
