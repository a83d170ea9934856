package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rehive/adapter-framework/internal/domain/job"
	"github.com/rehive/adapter-framework/internal/platform/messaging/producers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJob(ctx context.Context, j *job.Job) error {
	return m.Called(ctx, j).Error(0)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	return m.Called(ctx, key, value, reason).Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	return m.Called().Error(0)
}

func TestJobHandler_HandleMessage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("DispatchesDecodedJob", func(t *testing.T) {
		processor := new(MockJobProcessor)
		handler := NewJobHandler(logger, processor, nil)

		j := job.NewReconcile(uuid.New(), 4, "corr-1")
		value, err := json.Marshal(j)
		require.NoError(t, err)

		processor.On("ProcessJob", ctx, mock.MatchedBy(func(got *job.Job) bool {
			return got.ID == j.ID && got.TransactionID == j.TransactionID && got.Attempt == 4
		})).Return(nil).Once()

		require.NoError(t, handler.HandleMessage(ctx, []byte(j.Key()), value))
		processor.AssertExpectations(t)
	})

	t.Run("ProcessorErrorIsReturned", func(t *testing.T) {
		processor := new(MockJobProcessor)
		handler := NewJobHandler(logger, processor, nil)

		value, _ := json.Marshal(job.NewReconcile(uuid.New(), 1, ""))
		processor.On("ProcessJob", ctx, mock.Anything).Return(errors.New("db down")).Once()

		assert.Error(t, handler.HandleMessage(ctx, []byte("k"), value))
	})

	t.Run("UndecodableIsDeadLettered", func(t *testing.T) {
		processor := new(MockJobProcessor)
		dlq := new(MockDeadLetterPublisher)
		handler := NewJobHandler(logger, processor, dlq)

		dlq.On("PublishToDLQ", ctx, "bad", []byte("not json"), mock.MatchedBy(func(reason string) bool {
			return strings.Contains(reason, "failed to unmarshal job")
		})).Return(nil).Once()

		require.NoError(t, handler.HandleMessage(ctx, []byte("bad"), []byte("not json")))
		processor.AssertNotCalled(t, "ProcessJob", mock.Anything, mock.Anything)
		dlq.AssertExpectations(t)
	})

	t.Run("InvalidJobIsDeadLettered", func(t *testing.T) {
		processor := new(MockJobProcessor)
		dlq := new(MockDeadLetterPublisher)
		handler := NewJobHandler(logger, processor, dlq)

		value := []byte(`{"kind":"WEBHOOK","webhook_type":"receive"}`)
		dlq.On("PublishToDLQ", ctx, "k", value, mock.MatchedBy(func(reason string) bool {
			return strings.Contains(reason, job.ErrMissingReceiveID.Error())
		})).Return(nil).Once()

		require.NoError(t, handler.HandleMessage(ctx, []byte("k"), value))
		dlq.AssertExpectations(t)
	})

	t.Run("DeadLetterFailureIsReturned", func(t *testing.T) {
		processor := new(MockJobProcessor)
		dlq := new(MockDeadLetterPublisher)
		handler := NewJobHandler(logger, processor, dlq)

		dlq.On("PublishToDLQ", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

		assert.Error(t, handler.HandleMessage(ctx, []byte("bad"), []byte("{")))
	})
	t.Run("DisabledDeadLetterTopicAcknowledges", func(t *testing.T) {
		processor := new(MockJobProcessor)
		dlq := new(MockDeadLetterPublisher)
		handler := NewJobHandler(logger, processor, dlq)

		dlq.On("PublishToDLQ", ctx, mock.Anything, mock.Anything, mock.Anything).Return(producers.ErrDLQDisabled).Once()

		assert.NoError(t, handler.HandleMessage(ctx, []byte("bad"), []byte("{")))
	})
}
