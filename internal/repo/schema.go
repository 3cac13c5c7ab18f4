package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema — DDL таблиц ядра. Применяется однократно при старте воркера
// (EnsureSchema); в production миграции накатываются отдельно, DDL здесь
// идемпотентный.
//
// Три таблицы — единственное состояние, разделяемое между процессами:
//   - idempotency_keys — результаты завершённых операций (unique key)
//   - rate_limiters    — token buckets, мутируются под FOR UPDATE
//   - dead_letter_jobs — jobs, исчерпавшие бюджет попыток
const Schema = `
CREATE TABLE IF NOT EXISTS idempotency_keys (
	key         TEXT PRIMARY KEY,
	queue       TEXT NOT NULL,
	job_kind    TEXT NOT NULL,
	result      JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency_keys (expires_at);

CREATE TABLE IF NOT EXISTS rate_limiters (
	service         TEXT NOT NULL,
	tenant_id       TEXT NOT NULL DEFAULT '',
	tokens          DOUBLE PRECISION NOT NULL,
	bucket_size     DOUBLE PRECISION NOT NULL,
	refill_rate     DOUBLE PRECISION NOT NULL,
	last_refill_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	concurrent      INTEGER NOT NULL DEFAULT 0,
	max_concurrent  INTEGER NOT NULL,
	suspended       BOOLEAN NOT NULL DEFAULT false,
	PRIMARY KEY (service, tenant_id)
);

CREATE TABLE IF NOT EXISTS dead_letter_jobs (
	id          UUID PRIMARY KEY,
	queue       TEXT NOT NULL,
	job_kind    TEXT NOT NULL,
	job_data    JSONB NOT NULL,
	error       TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	tenant_id   TEXT NOT NULL,
	moved_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	consumed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_dlq_queue ON dead_letter_jobs (queue) WHERE consumed_at IS NULL;
`

// EnsureSchema применяет DDL ядра.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
