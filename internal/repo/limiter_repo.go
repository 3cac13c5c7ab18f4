package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Bastion/internal/domain"
)

// LimiterRepo — репозиторий для работы с rate_limiters.
//
// Все мутации bucket'а идут через WithBucket: одна транзакция,
// SELECT ... FOR UPDATE на строку bucket'а. Конкурирующие воркеры
// разных процессов сериализуются на row-level lock — два acquire
// на одном сервисе никогда не проходят по одному токену.
type LimiterRepo struct {
	pool *pgxpool.Pool
}

// NewLimiterRepo создаёт новый LimiterRepo.
func NewLimiterRepo(pool *pgxpool.Pool) *LimiterRepo {
	return &LimiterRepo{pool: pool}
}

const limiterColumns = `service, tenant_id, tokens, bucket_size, refill_rate,
	last_refill_at, concurrent, max_concurrent, suspended`

// Ensure создаёт bucket с заданными параметрами, если его ещё нет.
func (r *LimiterRepo) Ensure(ctx context.Context, b *domain.LimiterBucket) error {
	query := `
		INSERT INTO rate_limiters (service, tenant_id, tokens, bucket_size, refill_rate,
			last_refill_at, concurrent, max_concurrent, suspended)
		VALUES ($1, $2, $3, $4, $5, now(), 0, $6, false)
		ON CONFLICT (service, tenant_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		b.Service,
		b.TenantID,
		b.BucketSize, // новый bucket полный
		b.BucketSize,
		b.RefillRate,
		b.MaxConcurrent,
	)
	if err != nil {
		return fmt.Errorf("ensure limiter bucket: %w", err)
	}
	return nil
}

// WithBucket выполняет mutate над строкой bucket'а под row-level lock
// в одной транзакции и сохраняет изменённое состояние.
func (r *LimiterRepo) WithBucket(ctx context.Context, service, tenantID string, mutate func(b *domain.LimiterBucket) error) (*domain.LimiterBucket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + limiterColumns + `
		FROM rate_limiters
		WHERE service = $1 AND tenant_id = $2
		FOR UPDATE
	`
	bucket, err := scanBucket(tx.QueryRow(ctx, query, service, tenantID))
	if err != nil {
		return nil, err
	}

	if err := mutate(bucket); err != nil {
		return nil, err
	}

	update := `
		UPDATE rate_limiters
		SET tokens = $3, last_refill_at = $4, concurrent = $5, suspended = $6,
		    bucket_size = $7, refill_rate = $8, max_concurrent = $9
		WHERE service = $1 AND tenant_id = $2
	`
	_, err = tx.Exec(ctx, update,
		service,
		tenantID,
		bucket.Tokens,
		bucket.LastRefillAt,
		bucket.Concurrent,
		bucket.Suspended,
		bucket.BucketSize,
		bucket.RefillRate,
		bucket.MaxConcurrent,
	)
	if err != nil {
		return nil, fmt.Errorf("update limiter bucket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return bucket, nil
}

// ReleaseSlot освобождает слот конкурентности после завершения вызова.
// Отдельный одностейтментный UPDATE: не требует FOR UPDATE-цикла.
func (r *LimiterRepo) ReleaseSlot(ctx context.Context, service, tenantID string) error {
	query := `
		UPDATE rate_limiters
		SET concurrent = GREATEST(concurrent - 1, 0)
		WHERE service = $1 AND tenant_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, service, tenantID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get возвращает текущее состояние bucket'а без блокировки.
func (r *LimiterRepo) Get(ctx context.Context, service, tenantID string) (*domain.LimiterBucket, error) {
	query := `SELECT ` + limiterColumns + `
		FROM rate_limiters
		WHERE service = $1 AND tenant_id = $2
	`
	return scanBucket(r.pool.QueryRow(ctx, query, service, tenantID))
}

// List возвращает все buckets для операторского API.
func (r *LimiterRepo) List(ctx context.Context) ([]domain.LimiterBucket, error) {
	query := `SELECT ` + limiterColumns + ` FROM rate_limiters ORDER BY service, tenant_id`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list limiter buckets: %w", err)
	}
	defer rows.Close()

	var buckets []domain.LimiterBucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, *b)
	}
	return buckets, rows.Err()
}

func scanBucket(row pgx.Row) (*domain.LimiterBucket, error) {
	var b domain.LimiterBucket
	var lastRefill time.Time

	err := row.Scan(
		&b.Service,
		&b.TenantID,
		&b.Tokens,
		&b.BucketSize,
		&b.RefillRate,
		&lastRefill,
		&b.Concurrent,
		&b.MaxConcurrent,
		&b.Suspended,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan limiter bucket: %w", err)
	}

	b.LastRefillAt = lastRefill
	return &b, nil
}
