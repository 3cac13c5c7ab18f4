package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord — сохранённый результат завершённой операции.
//
// Инвариант: не более одной записи на ключ; запись видна всем процессам.
// Создаётся атомарно при первом успешном завершении операции, читается
// на каждой попытке до выполнения side effects. После ExpiresAt запись
// игнорируется и удаляется reaper'ом — ключ может быть переиспользован.
type IdempotencyRecord struct {
	Key       string          `json:"key"`
	Queue     Queue           `json:"queue"`
	JobKind   JobKind         `json:"job_kind"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// LimiterBucket — состояние распределённого token bucket для внешнего
// сервиса. Авторитетная копия живёт в БД и мутируется под row-level lock.
//
// Инварианты: 0 <= Tokens <= BucketSize; Tokens растёт только за счёт
// time-based refill и уменьшается только успешным acquire.
type LimiterBucket struct {
	Service       string    `json:"service"`
	TenantID      string    `json:"tenant_id,omitempty"`
	Tokens        float64   `json:"tokens"`
	BucketSize    float64   `json:"bucket_size"`
	RefillRate    float64   `json:"refill_rate"` // токенов в секунду
	LastRefillAt  time.Time `json:"last_refill_at"`
	Concurrent    int       `json:"concurrent"`
	MaxConcurrent int       `json:"max_concurrent"`
	Suspended     bool      `json:"suspended"`
}

// DeadLetterEntry — job, исчерпавший бюджет попыток.
//
// JobData хранит оригинальный job байт-в-байт: retry публикует его
// без изменений.
type DeadLetterEntry struct {
	ID       uuid.UUID       `json:"id"`
	Queue    Queue           `json:"queue"`
	JobKind  JobKind         `json:"job_kind"`
	JobData  json.RawMessage `json:"job_data"`
	Error    string          `json:"error"`
	Attempts int             `json:"attempts"`
	TenantID string          `json:"tenant_id"`
	MovedAt  time.Time       `json:"moved_at"`
}
