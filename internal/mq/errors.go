package mq

import "errors"

// Ошибки транспорта.
var (
	// ErrNoChannel — канал AMQP недоступен (соединение потеряно).
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrUnknownQueue — очередь не входит в топологию.
	ErrUnknownQueue = errors.New("unknown queue")
)
