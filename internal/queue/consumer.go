package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// Consumer pulls deliveries from one queue and fans them out to a pool of
// workers. Each delivery is handled by exactly one worker; a handler error
// rejects the message without requeue, which dead-letters it.
type Consumer struct {
	conn     *amqp.Connection
	queue    string
	prefetch int
	workers  int
	logger   *slog.Logger
}

func NewConsumer(conn *amqp.Connection, queue string, prefetch, workers int, logger *slog.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 50
	}
	if workers <= 0 {
		workers = 5
	}
	return &Consumer{
		conn:     conn,
		queue:    queue,
		prefetch: prefetch,
		workers:  workers,
		logger:   logger,
	}
}

// Start consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Start(ctx context.Context, handler func(context.Context, amqp.Delivery) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := Setup(ch); err != nil {
		return fmt.Errorf("queue topology setup failed: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos configuration failed: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", c.queue, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveries:
					if !ok {
						return
					}
					c.handle(ctx, msg, handler)
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery, handler func(context.Context, amqp.Delivery) error) {
	if err := handler(ctx, msg); err != nil {
		c.logger.Error("job rejected, dead-lettering",
			slog.String("queue", c.queue),
			slog.String("message_id", msg.MessageId),
			slog.Any("error", err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			c.logger.Error("nack failed", slog.Any("error", nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		c.logger.Error("ack failed", slog.Any("error", ackErr))
	}
}
