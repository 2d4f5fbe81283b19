package queue

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/retry"

	"reminderd/internal/config"
)

type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
}

func NewConsumer(ctx context.Context, cfg config.RabbitMQConfig, strategy retry.Strategy) (*Consumer, error) {
	conn, ch, err := connect(ctx, cfg, strategy)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
	}, nil
}

// Consume starts delivering jobs with manual acknowledgement. Prefetch bounds
// the number of unacked jobs per worker process; an unacked job is redelivered
// by the broker after the connection drops, which is the crash-recovery path.
func (c *Consumer) Consume(prefetch int) (<-chan amqp091.Delivery, error) {
	if err := c.channel.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("error setting qos: %w", err)
	}

	deliveries, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("error consuming queue '%s': %w", c.queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return err
		}
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
