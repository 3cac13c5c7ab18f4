package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Bastion/internal/domain"
)

// Publisher публикует jobs в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger.With("component", "mq-publisher"),
	}
}

// PublishJob публикует job в его рабочую очередь.
func (p *Publisher) PublishJob(ctx context.Context, job *domain.Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return p.publish(ctx, ExchangeJobs, routingKey(job.Queue), body, job.Priority, 0)
}

// PublishRaw публикует сырое тело job в очередь queue без изменений.
// Используется DLQ retry: оригинальный payload байт-в-байт.
func (p *Publisher) PublishRaw(ctx context.Context, queue domain.Queue, body json.RawMessage) error {
	return p.publish(ctx, ExchangeJobs, routingKey(queue), body, 0, 0)
}

// PublishDelayed публикует сырое тело job в wait-очередь с задержкой.
// По истечении delay RabbitMQ вернёт сообщение в рабочую очередь.
func (p *Publisher) PublishDelayed(ctx context.Context, queue domain.Queue, body json.RawMessage, delay time.Duration) error {
	if delay <= 0 {
		return p.PublishRaw(ctx, queue, body)
	}
	return p.publish(ctx, ExchangeWait, routingKey(queue), body, 0, delay)
}

func (p *Publisher) publish(ctx context.Context, exchange Exchange, key RoutingKey, body []byte, priority uint8, ttl time.Duration) error {
	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		msg := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт брокера
			Timestamp:    time.Now(),
			Priority:     priority,
			Body:         body,
		}
		if ttl > 0 {
			msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
		}

		if err := ch.PublishWithContext(ctx, string(exchange), string(key), false, false, msg); err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
		}

		p.logger.Debug("published",
			"exchange", exchange,
			"routing_key", key,
			"ttl", ttl,
		)
		return nil
	})
}
