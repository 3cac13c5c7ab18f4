package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Bastion/internal/domain"
)

// Handler — обработчик доставленного job.
// Обработчик сам решает судьбу доставки: Ack, Retry или Discard.
type Handler func(ctx context.Context, d *Delivery)

// Delivery — доставленный job с операциями транспорта.
//
// Реализует контракт harness'а: ровно одна из операций Ack/Retry/Discard
// должна быть вызвана для каждой доставки.
type Delivery struct {
	// Job — распарсенный job.
	Job *domain.Job

	// Body — сырое тело сообщения, байт-в-байт как опубликовано.
	Body json.RawMessage

	raw       amqp.Delivery
	publisher *Publisher
}

// Ack подтверждает обработку, job удаляется из очереди.
func (d *Delivery) Ack() error {
	return d.raw.Ack(false)
}

// Retry переносит job: текущая доставка подтверждается, а тело
// публикуется в wait-очередь с задержкой after. Attempts инкрементирован
// в теле перед публикацией.
func (d *Delivery) Retry(ctx context.Context, after time.Duration) error {
	retried := *d.Job
	retried.Attempts++

	body, err := json.Marshal(&retried)
	if err != nil {
		return fmt.Errorf("marshal retried job: %w", err)
	}

	if err := d.publisher.PublishDelayed(ctx, d.Job.Queue, body, after); err != nil {
		// Публикация не удалась — возвращаем сообщение брокеру,
		// redelivery доставит его другому воркеру.
		d.raw.Nack(false, true)
		return fmt.Errorf("schedule retry: %w", err)
	}

	return d.raw.Ack(false)
}

// Postpone переносит job без списания попытки: тело публикуется в
// wait-очередь байт-в-байт, Attempts не меняется. Используется когда
// повтор вызван не отказом обработчика (rate limit, открытый breaker).
func (d *Delivery) Postpone(ctx context.Context, after time.Duration) error {
	if err := d.publisher.PublishDelayed(ctx, d.Job.Queue, d.Body, after); err != nil {
		d.raw.Nack(false, true)
		return fmt.Errorf("postpone: %w", err)
	}
	return d.raw.Ack(false)
}

// Discard подтверждает доставку без повтора: терминальное действие
// после записи в content-DLQ (Postgres).
func (d *Delivery) Discard() error {
	return d.raw.Ack(false)
}

// Requeue возвращает сообщение брокеру без подсчёта попытки.
// Используется при shutdown для in-flight jobs.
func (d *Delivery) Requeue() error {
	return d.raw.Nack(false, true)
}

// Consumer потребляет jobs из одной очереди.
type Consumer struct {
	conn      *Connection
	publisher *Publisher
	logger    *slog.Logger
	queue     domain.Queue
	handler   Handler
	prefetch  int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — рабочая очередь.
	Queue domain.Queue

	// Handler — обработчик доставок.
	Handler Handler

	// Prefetch — сколько неподтверждённых доставок держит брокер
	// на этом consumer'е. Задаёт конкурентность очереди.
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, publisher *Publisher, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:      conn,
		publisher: publisher,
		logger:    logger.With("component", "mq-consumer", "queue", cfg.Queue),
		queue:     cfg.Queue,
		handler:   cfg.Handler,
		prefetch:  prefetch,
	}
}

// Start запускает цикл потребления. Блокирует до отмены ctx.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.setup()
		if err != nil {
			c.logger.Error("failed to start consuming", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}

		c.logger.Info("consumer started", "prefetch", c.prefetch)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

func (c *Consumer) setup() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.dispatch(ctx, raw)
		}
	}
}

// dispatch парсит сообщение и передаёт обработчику.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var job domain.Job
	if err := json.Unmarshal(raw.Body, &job); err != nil {
		c.logger.Error("unparseable message",
			"error", err,
			"body", string(raw.Body),
		)
		// Некорректное сообщение — в транспортную DLQ.
		raw.Nack(false, false)
		return
	}

	c.handler(ctx, &Delivery{
		Job:       &job,
		Body:      json.RawMessage(raw.Body),
		raw:       raw,
		publisher: c.publisher,
	})
}
