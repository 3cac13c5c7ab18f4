package ratelimit

import "errors"

// Ошибки limiter.
var (
	// ErrUnknownService — для сервиса нет ни bucket'а, ни конфигурации.
	ErrUnknownService = errors.New("unknown rate-limited service")
)
