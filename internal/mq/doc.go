// Package mq реализует транспорт jobs поверх RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация jobs (включая отложенный retry)
//   - consumer.go   — потребление jobs с ручным ack
//
// Транспорт реализует контракт harness'а: доставка job → обработчик,
// Ack, Retry(after), Discard. Отложенный retry сделан через wait-очереди:
// job публикуется в wait.<queue> с per-message TTL, по истечении TTL
// RabbitMQ сам возвращает его в рабочую очередь через DLX.
//
// Exchanges:
//   - bastion.jobs — рабочие очереди jobs
//   - bastion.wait — wait-очереди отложенных retry
//   - bastion.dlq  — транспортный сток некорректных сообщений
package mq
