package harness

import "errors"

// Ошибки пакета harness.
var (
	// ErrUnknownProcessor — для типа job не зарегистрирован processor.
	ErrUnknownProcessor = errors.New("unknown processor")

	// ErrStopped — harness остановлен, новые deliveries не принимаются.
	ErrStopped = errors.New("harness stopped")
)
