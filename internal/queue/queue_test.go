package queue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/models"
	"github.com/coreflowhq/wabroker/internal/queue"
)

func TestMemoryQueue_EnqueueAndReceive(t *testing.T) {
	q := queue.NewMemoryQueue(8, zap.NewNop())

	events := []models.BrokerEvent{
		{ID: "e1", Type: models.EventMessageReceived},
		{ID: "e2", Type: models.EventPollVote},
	}
	require.NoError(t, q.Enqueue(context.Background(), events))

	assert.Equal(t, "e1", (<-q.Events()).ID)
	assert.Equal(t, "e2", (<-q.Events()).ID)
}

func TestMemoryQueue_FullBufferIsAnError(t *testing.T) {
	q := queue.NewMemoryQueue(1, zap.NewNop())

	err := q.Enqueue(context.Background(), []models.BrokerEvent{{ID: "e1"}, {ID: "e2"}})
	assert.Error(t, err)

	// The first event made it in before the buffer filled.
	assert.Equal(t, "e1", (<-q.Events()).ID)
}

func TestMemoryQueue_CanceledContext(t *testing.T) {
	q := queue.NewMemoryQueue(1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// With buffer space available the send wins the select either way; fill
	// the buffer first so cancellation is observable.
	require.NoError(t, q.Enqueue(context.Background(), []models.BrokerEvent{{ID: "e1"}}))
	err := q.Enqueue(ctx, []models.BrokerEvent{{ID: "e2"}})
	assert.Error(t, err)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := queue.NewMemoryQueue(1, zap.NewNop())
	require.NoError(t, q.Close())

	_, open := <-q.Events()
	assert.False(t, open)
}
