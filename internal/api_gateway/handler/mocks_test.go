package handler

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/api_gateway/service"
	"github.com/rehive/adapter-framework/internal/domain/account"
	"github.com/rehive/adapter-framework/internal/domain/audit"
	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/domain/transaction"
	"github.com/rehive/adapter-framework/internal/domain/user"
	"github.com/rehive/adapter-framework/internal/reconciler/engine"
	"github.com/stretchr/testify/mock"
)

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) CreateTransaction(ctx context.Context, req *engine.CreateRequest) (*transaction.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionService) GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionService) CancelTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionService) GetTransactionEvents(ctx context.Context, id uuid.UUID, page, perPage int) ([]*audit.Event, error) {
	args := m.Called(ctx, id, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Event), args.Error(1)
}

type MockOperatingService struct {
	mock.Mock
}

func (m *MockOperatingService) AccountReference(ctx context.Context, t account.Type) (string, error) {
	args := m.Called(ctx, t)
	return args.String(0), args.Error(1)
}

func (m *MockOperatingService) AccountBalance(ctx context.Context, t account.Type) (*service.Balance, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Balance), args.Error(1)
}

func (m *MockOperatingService) UserReference(ctx context.Context, u *user.User) (string, error) {
	args := m.Called(ctx, u)
	return args.String(0), args.Error(1)
}

type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) EnqueueWebhook(ctx context.Context, webhookType, receiveID string, payload json.RawMessage) (*job.Job, error) {
	args := m.Called(ctx, webhookType, receiveID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Job), args.Error(1)
}
