package gateway

import "errors"

// Ошибки пакета gateway.
var (
	// ErrUnexpectedStatus — внешний сервис вернул не-2xx статус.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrMissingBaseURL — клиент сконфигурирован без базового URL.
	ErrMissingBaseURL = errors.New("base URL is required")
)
