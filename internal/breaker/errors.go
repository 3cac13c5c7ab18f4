package breaker

import "errors"

// Ошибки breaker.
var (
	// ErrOpen — breaker открыт, вызов отклонён без обращения к зависимости.
	ErrOpen = errors.New("circuit breaker is open")

	// ErrOperationTimeout — операция превысила OperationTimeout.
	ErrOperationTimeout = errors.New("operation timeout")
)
