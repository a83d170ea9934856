package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/domain/retry"
	"github.com/stretchr/testify/mock"
)

type MockRetryRepo struct {
	mock.Mock
}

func (m *MockRetryRepo) Schedule(ctx context.Context, r *retry.Retry) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRetryRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*retry.Retry, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*retry.Retry), args.Error(1)
}

func (m *MockRetryRepo) Release(ctx context.Context, id int64, lastError string) error {
	args := m.Called(ctx, id, lastError)
	return args.Error(0)
}

func (m *MockRetryRepo) MarkExhausted(ctx context.Context, transactionID uuid.UUID, lastError string) error {
	args := m.Called(ctx, transactionID, lastError)
	return args.Error(0)
}

func (m *MockRetryRepo) Cancel(ctx context.Context, transactionID uuid.UUID) error {
	args := m.Called(ctx, transactionID)
	return args.Error(0)
}

func (m *MockRetryRepo) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*retry.Retry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*retry.Retry), args.Error(1)
}

type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) PublishJob(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

type MockAlertPublisher struct {
	mock.Mock
}

func (m *MockAlertPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}
