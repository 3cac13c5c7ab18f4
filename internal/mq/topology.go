package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Bastion/internal/domain"
)

// Exchange — имя обменника.
type Exchange string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Exchanges системы.
const (
	ExchangeJobs Exchange = "bastion.jobs"
	ExchangeWait Exchange = "bastion.wait"
	ExchangeDLQ  Exchange = "bastion.dlq"
)

// QueueTransportDLQ — транспортный сток для сообщений, которые не
// удалось даже распарсить. Содержательная DLQ живёт в Postgres.
const QueueTransportDLQ = "dlq.jobs"

// Максимальный приоритет сообщений в рабочих очередях.
const maxPriority = 10

// waitQueue возвращает имя wait-очереди для рабочей очереди q.
func waitQueue(q domain.Queue) string {
	return "wait." + string(q)
}

// routingKey возвращает routing key рабочей очереди.
func routingKey(q domain.Queue) RoutingKey {
	return RoutingKey(q)
}

// SetupTopology объявляет exchanges, очереди и bindings.
//
// Для каждой рабочей очереди создаётся парная wait-очередь: сообщение
// с per-message TTL лежит в ней до истечения задержки, затем через DLX
// возвращается в рабочую очередь. Так реализован Retry(after) без
// блокировки consumer'а.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeJobs, ExchangeWait, ExchangeDLQ} {
			err := ch.ExchangeDeclare(
				string(ex), // name
				"direct",   // type
				true,       // durable
				false,      // auto-deleted
				false,      // internal
				false,      // no-wait
				nil,        // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, q := range domain.AllQueues() {
			if err := declareWorkQueue(ch, q); err != nil {
				return err
			}
			if err := declareWaitQueue(ch, q); err != nil {
				return err
			}
		}

		// Транспортная DLQ — сток для непарсящихся сообщений.
		if _, err := ch.QueueDeclare(QueueTransportDLQ, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueTransportDLQ, err)
		}
		if err := ch.QueueBind(QueueTransportDLQ, "jobs", string(ExchangeDLQ), false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", QueueTransportDLQ, err)
		}

		return nil
	})
}

func declareWorkQueue(ch *amqp.Channel, q domain.Queue) error {
	args := amqp.Table{
		"x-max-priority":            int32(maxPriority),
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": "jobs",
	}

	if _, err := ch.QueueDeclare(string(q), true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", q, err)
	}
	if err := ch.QueueBind(string(q), string(routingKey(q)), string(ExchangeJobs), false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q, err)
	}
	return nil
}

func declareWaitQueue(ch *amqp.Channel, q domain.Queue) error {
	// По истечении per-message TTL сообщение возвращается в рабочую
	// очередь через exchange bastion.jobs.
	//
	// Очередь общая для retry и postpone. RabbitMQ истекает per-message
	// TTL только с головы очереди: сообщение с коротким TTL, вставшее
	// за длинным, доставится не раньше головы.
	// TODO: очереди ожидания по классам задержки, чтобы короткий
	// postpone не ждал за длинным retry.
	args := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeJobs),
		"x-dead-letter-routing-key": string(routingKey(q)),
	}

	name := waitQueue(q)
	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	if err := ch.QueueBind(name, string(routingKey(q)), string(ExchangeWait), false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", name, err)
	}
	return nil
}
