package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyConsumed — DLQ-запись уже была retried или удалена.
	ErrAlreadyConsumed = errors.New("dead letter entry already consumed")
)
