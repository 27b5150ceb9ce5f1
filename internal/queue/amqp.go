package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/coreflowhq/wabroker/internal/models"
)

// envelope is the wire format published to the exchange.
type envelope struct {
	Meta envelopeMeta       `json:"meta"`
	Data models.BrokerEvent `json:"data"`
}

type envelopeMeta struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AMQPQueue publishes normalized events to a RabbitMQ topic exchange with
// persistent delivery.
type AMQPQueue struct {
	conn       *amqp091.Connection
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// NewAMQPQueue connects to RabbitMQ and declares the topic exchange.
func NewAMQPQueue(url, exchange, routingKey string, logger *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() {
		if closeErr := ch.Close(); closeErr != nil {
			logger.Warn("Failed to close AMQP channel", zap.Error(closeErr))
		}
	}()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPQueue{
		conn:       conn,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// Enqueue publishes each event as one persistent JSON message.
func (q *AMQPQueue) Enqueue(ctx context.Context, events []models.BrokerEvent) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer func() {
		if closeErr := ch.Close(); closeErr != nil {
			q.logger.Warn("Failed to close AMQP channel", zap.Error(closeErr))
		}
	}()

	for _, event := range events {
		body, err := json.Marshal(envelope{
			Meta: envelopeMeta{
				ID:         uuid.NewString(),
				Source:     "wabroker",
				OccurredAt: time.Now(),
			},
			Data: event,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
		}

		err = ch.PublishWithContext(ctx, q.exchange, q.routingKey, false, false,
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				MessageId:    event.ID,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
	}

	q.logger.Debug("Events published",
		zap.Int("count", len(events)),
		zap.String("exchange", q.exchange),
		zap.String("routing_key", q.routingKey))
	return nil
}

func (q *AMQPQueue) Close() error {
	return q.conn.Close()
}
