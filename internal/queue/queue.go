// Package queue provides the downstream sink for normalized broker events.
// Business processing (ticket/message creation) consumes from it
// asynchronously with at-least-once semantics.
package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/models"
)

// Queue accepts normalized events for asynchronous consumption.
type Queue interface {
	Enqueue(ctx context.Context, events []models.BrokerEvent) error
	Close() error
}

// MemoryQueue is a channel-backed in-process queue, used in tests and
// single-process deployments.
type MemoryQueue struct {
	ch     chan models.BrokerEvent
	logger *zap.Logger
}

// NewMemoryQueue creates an in-process queue with the given buffer size.
func NewMemoryQueue(bufferSize int, logger *zap.Logger) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &MemoryQueue{
		ch:     make(chan models.BrokerEvent, bufferSize),
		logger: logger,
	}
}

// Enqueue hands events to the in-process channel. A full buffer is an error
// rather than a block so the poller's cycle stays bounded.
func (q *MemoryQueue) Enqueue(ctx context.Context, events []models.BrokerEvent) error {
	for _, event := range events {
		select {
		case q.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			return fmt.Errorf("event queue is full (capacity %d)", cap(q.ch))
		}
	}
	q.logger.Debug("Events enqueued", zap.Int("count", len(events)))
	return nil
}

// Events exposes the consumer side of the queue.
func (q *MemoryQueue) Events() <-chan models.BrokerEvent {
	return q.ch
}

func (q *MemoryQueue) Close() error {
	close(q.ch)
	return nil
}
