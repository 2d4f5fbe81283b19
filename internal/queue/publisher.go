package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"github.com/wb-go/wbf/retry"

	"reminderd/internal/config"
	"reminderd/internal/model"
)

const dispatchRoutingKey = "dispatch"

type Publisher struct {
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	exchange      string
	retryStrategy retry.Strategy
}

func NewPublisher(ctx context.Context, cfg config.RabbitMQConfig, strategy retry.Strategy) (*Publisher, error) {
	conn, ch, err := connect(ctx, cfg, strategy)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		conn:          conn,
		channel:       ch,
		exchange:      cfg.Exchange,
		retryStrategy: strategy,
	}, nil
}

// PublishDispatch puts a dispatch job on the queue. Persistent delivery mode:
// a broker restart must not drop claimed work.
func (p *Publisher) PublishDispatch(ctx context.Context, job model.DispatchJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal dispatch job: %w", err)
	}

	return retry.DoContext(ctx, p.retryStrategy, func() error {
		return p.channel.PublishWithContext(ctx, p.exchange, dispatchRoutingKey, false, false, amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
		})
	})
}

func (p *Publisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func connect(ctx context.Context, cfg config.RabbitMQConfig, strategy retry.Strategy) (*amqp091.Connection, *amqp091.Channel, error) {
	var conn *amqp091.Connection
	err := retry.DoContext(ctx, strategy, func() error {
		var dialErr error
		conn, dialErr = amqp091.Dial(fmt.Sprintf(
			"amqp://%s:%s@%s:%d/%s",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.VHost,
		))
		return dialErr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("error creating channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return nil, nil, fmt.Errorf("error declaring exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return nil, nil, fmt.Errorf("error declaring queue '%s': %w", cfg.Queue, err)
	}

	if err := ch.QueueBind(cfg.Queue, dispatchRoutingKey, cfg.Exchange, false, nil); err != nil {
		return nil, nil, fmt.Errorf("error binding queue '%s' to exchange: %w", cfg.Queue, err)
	}

	return conn, ch, nil
}
