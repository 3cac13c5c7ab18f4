package domain

import "errors"

// Общие ошибки доменных моделей.
var (
	// ErrInvalidJob — job не проходит базовую валидацию.
	ErrInvalidJob = errors.New("invalid job")

	// ErrUnknownJobKind — нет типизированного payload для данного Kind.
	ErrUnknownJobKind = errors.New("unknown job kind")

	// ErrNonRetryable — постоянная бизнес-ошибка (валидация, отказ
	// провайдера). Harness не тратит на неё бюджет повторов, а сразу
	// отправляет job в DLQ.
	ErrNonRetryable = errors.New("non-retryable error")
)

// NonRetryable оборачивает err так, что errors.Is(err, ErrNonRetryable)
// возвращает true. Processors помечают так постоянные отказы.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return nonRetryableError{err}
}

type nonRetryableError struct {
	err error
}

func (e nonRetryableError) Error() string { return e.err.Error() }

func (e nonRetryableError) Unwrap() []error {
	return []error{e.err, ErrNonRetryable}
}
