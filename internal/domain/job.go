package domain

import (
	"time"

	"github.com/google/uuid"
)

// Queue — имя очереди jobs.
type Queue string

// Очереди системы. Payments — критическая "денежная" очередь:
// обрабатывается выделенным пулом воркеров и при попадании job в DLQ
// поднимает алерт.
const (
	QueuePayments      Queue = "jobs.payments"
	QueueMinting       Queue = "jobs.minting"
	QueueNotifications Queue = "jobs.notifications"
)

// AllQueues возвращает все известные очереди.
func AllQueues() []Queue {
	return []Queue{QueuePayments, QueueMinting, QueueNotifications}
}

// IsCritical возвращает true для очередей, терминальные сбои которых
// требуют немедленного внимания оператора.
func (q Queue) IsCritical() bool {
	return q == QueuePayments
}

// Job — единица работы, доставляемая транспортом очереди.
//
// Job создаётся внешним сервисом (API, scheduler) и публикуется в одну
// из очередей. Harness получает job, резолвит типизированный payload
// и выполняет через зарегистрированный Processor.
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// Queue — очередь, в которую job был опубликован.
	Queue Queue `json:"queue"`

	// Kind — тип job, определяет processor и форму payload.
	Kind JobKind `json:"kind"`

	// TenantID — арендатор, от имени которого выполняется работа.
	TenantID string `json:"tenant_id"`

	// Payload — сырой JSON payload. Декодируется в типизированную
	// структуру один раз на границе harness (см. DecodePayload).
	Payload []byte `json:"payload"`

	// Priority — приоритет внутри очереди (больше — раньше).
	Priority uint8 `json:"priority"`

	// Attempts — номер текущей попытки (начиная с 1 при первой доставке).
	Attempts int `json:"attempts"`

	// MaxAttempts — бюджет попыток, после исчерпания job уходит в DLQ.
	MaxAttempts int `json:"max_attempts"`

	// IdempotencyKey — детерминированный ключ логической операции.
	// Никогда не включает время — повторы той же операции коллизируют
	// на одном ключе.
	IdempotencyKey string `json:"idempotency_key"`

	// ScheduledAt — время, раньше которого job не должен выполняться.
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Exhausted возвращает true, если бюджет попыток исчерпан.
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}

// Validate проверяет обязательные поля job.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrInvalidJob
	}
	if j.TenantID == "" {
		return ErrInvalidJob
	}
	if !j.Kind.Valid() {
		return ErrUnknownJobKind
	}
	if j.MaxAttempts <= 0 {
		return ErrInvalidJob
	}
	return nil
}
