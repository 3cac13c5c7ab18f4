package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Bastion/internal/domain"
)

// IdempotencyRepo — репозиторий для работы с idempotency_keys.
type IdempotencyRepo struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepo создаёт новый IdempotencyRepo.
func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Get возвращает живую (не истёкшую) запись по ключу.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	query := `
		SELECT key, queue, job_kind, result, created_at, expires_at
		FROM idempotency_keys
		WHERE key = $1 AND expires_at > now()
	`
	return scanIdempotencyRecord(r.pool.QueryRow(ctx, query, key))
}

// InsertIfAbsent атомарно вставляет запись, если живой записи с этим
// ключом нет. Истёкшая запись перезаписывается тем же statement'ом.
//
// Возвращает (record, inserted): при inserted=false record — запись
// победившего конкурента. Гонка двух воркеров на одном ключе решается
// на уровне unique-констрейнта, без окна check-then-store.
func (r *IdempotencyRepo) InsertIfAbsent(ctx context.Context, rec *domain.IdempotencyRecord) (*domain.IdempotencyRecord, bool, error) {
	resultJSON := []byte(rec.Result)
	if len(resultJSON) == 0 {
		resultJSON = []byte("null")
	}

	query := `
		INSERT INTO idempotency_keys (key, queue, job_kind, result, created_at, expires_at)
		VALUES ($1, $2, $3, $4, now(), $5)
		ON CONFLICT (key) DO UPDATE
		SET queue = EXCLUDED.queue,
		    job_kind = EXCLUDED.job_kind,
		    result = EXCLUDED.result,
		    created_at = now(),
		    expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at <= now()
		RETURNING key, queue, job_kind, result, created_at, expires_at
	`
	winner, err := scanIdempotencyRecord(r.pool.QueryRow(ctx, query,
		rec.Key,
		rec.Queue,
		rec.JobKind,
		resultJSON,
		rec.ExpiresAt,
	))
	if err == nil {
		return winner, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	// Конфликт с живой записью — RETURNING ничего не вернул.
	// Читаем запись победителя.
	existing, err := r.Get(ctx, rec.Key)
	if err != nil {
		return nil, false, fmt.Errorf("get winning record: %w", err)
	}
	return existing, false, nil
}

// DeleteExpired удаляет до limit истёкших записей.
// Возвращает количество удалённых строк.
func (r *IdempotencyRepo) DeleteExpired(ctx context.Context, limit int) (int64, error) {
	query := `
		DELETE FROM idempotency_keys
		WHERE key IN (
			SELECT key FROM idempotency_keys
			WHERE expires_at <= now()
			LIMIT $1
		)
	`
	tag, err := r.pool.Exec(ctx, query, limit)
	if err != nil {
		return 0, fmt.Errorf("delete expired keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete удаляет запись по ключу. Для операторского вмешательства.
func (r *IdempotencyRepo) Delete(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIdempotencyRecord(row pgx.Row) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	var resultJSON []byte

	err := row.Scan(
		&rec.Key,
		&rec.Queue,
		&rec.JobKind,
		&resultJSON,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan idempotency record: %w", err)
	}

	rec.Result = json.RawMessage(resultJSON)
	return &rec, nil
}
