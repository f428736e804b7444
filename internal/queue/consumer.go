package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQConsumer feeds dispatch messages from the work queue to the email worker.
type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, dispatch MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if dispatch == nil {
		return fmt.Errorf("dispatch handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, queue, dispatch)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RabbitMQConsumer) consumeOnce(ctx context.Context, queue string, dispatch MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume dispatch queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("dispatch delivery channel closed")
			}

			if err := c.handleDelivery(ctx, d, dispatch); err != nil {
				return err
			}
		}
	}
}

// handleDelivery runs one dispatch. Undecodable payloads are rejected straight to
// the dead-letter queue. A failed dispatch is requeued once; the redelivery that
// fails again is dead-lettered and the pending sweep re-arms the record later.
func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, dispatch MessageHandler) error {
	var msg NotificationMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Warn("dead-lettering dispatch message: body is not JSON",
			zap.Error(err),
			zap.String("routingKey", d.RoutingKey),
		)
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject undecodable dispatch message: %w", rejectErr)
		}
		return nil
	}

	logger := c.logger.With(
		zap.String("notificationId", msg.NotificationID),
		zap.String("kind", msg.Kind.String()),
		zap.String("source", string(msg.Source)),
		zap.String("correlationId", msg.CorrelationID),
	)

	if err := msg.Validate(); err != nil {
		logger.Warn("dead-lettering dispatch message: invalid payload", zap.Error(err))
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid dispatch message: %w", rejectErr)
		}
		return nil
	}

	if err := dispatch(ctx, msg); err != nil {
		requeue := !d.Redelivered
		if requeue {
			logger.Warn("dispatch failed, requeueing notification", zap.Error(err))
		} else {
			logger.Error("dispatch failed on redelivery, dead-lettering notification", zap.Error(err))
		}
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			return fmt.Errorf("dispatch of %s failed and nack failed: %w", msg.NotificationID, nackErr)
		}
		return nil
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack dispatched notification %s: %w", msg.NotificationID, err)
	}

	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
