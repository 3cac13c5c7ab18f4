package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Bastion/internal/domain"
)

// DLQRepo — репозиторий для работы с dead_letter_jobs.
type DLQRepo struct {
	pool *pgxpool.Pool
}

// NewDLQRepo создаёт новый DLQRepo.
func NewDLQRepo(pool *pgxpool.Pool) *DLQRepo {
	return &DLQRepo{pool: pool}
}

const dlqColumns = `id, queue, job_kind, job_data, error, attempts, tenant_id, moved_at`

// Insert сохраняет запись DLQ. Повторная вставка того же id (redelivery
// job, уже записанного в DLQ) возвращает ErrAlreadyExists.
func (r *DLQRepo) Insert(ctx context.Context, e *domain.DeadLetterEntry) error {
	query := `
		INSERT INTO dead_letter_jobs (id, queue, job_kind, job_data, error, attempts, tenant_id, moved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query,
		e.ID,
		e.Queue,
		e.JobKind,
		[]byte(e.JobData),
		e.Error,
		e.Attempts,
		e.TenantID,
		e.MovedAt,
	)
	if err != nil {
		return fmt.Errorf("insert dead letter entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetByID возвращает запись по ID. Для уже потреблённой записи
// возвращает ErrAlreadyConsumed.
func (r *DLQRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetterEntry, error) {
	query := `SELECT ` + dlqColumns + `, consumed_at
		FROM dead_letter_jobs
		WHERE id = $1
	`

	var (
		e          domain.DeadLetterEntry
		jobData    []byte
		consumedAt *time.Time
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Queue,
		&e.JobKind,
		&jobData,
		&e.Error,
		&e.Attempts,
		&e.TenantID,
		&e.MovedAt,
		&consumedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dead letter entry: %w", err)
	}
	if consumedAt != nil {
		return nil, ErrAlreadyConsumed
	}

	e.JobData = json.RawMessage(jobData)
	return &e, nil
}

// List возвращает непотреблённые записи, опционально фильтруя по очереди.
func (r *DLQRepo) List(ctx context.Context, queue domain.Queue, limit int) ([]domain.DeadLetterEntry, error) {
	query := `SELECT ` + dlqColumns + `
		FROM dead_letter_jobs
		WHERE consumed_at IS NULL AND ($1 = '' OR queue = $1)
		ORDER BY moved_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, string(queue), limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letter entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.DeadLetterEntry
	for rows.Next() {
		e, err := scanDLQEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// MarkConsumed помечает запись как retried/удалённую.
// Возвращает ErrAlreadyConsumed, если запись уже была потреблена.
func (r *DLQRepo) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE dead_letter_jobs
		SET consumed_at = now()
		WHERE id = $1 AND consumed_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark consumed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо нет записи, либо уже потреблена.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM dead_letter_jobs WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check entry exists: %w", err)
		}
		if exists {
			return ErrAlreadyConsumed
		}
		return ErrNotFound
	}
	return nil
}

// Delete удаляет запись окончательно.
func (r *DLQRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dead_letter_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dead letter entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// QueueStat — счётчик DLQ-записей по (queue, kind).
type QueueStat struct {
	Queue   domain.Queue   `json:"queue"`
	JobKind domain.JobKind `json:"job_kind"`
	Count   int            `json:"count"`
}

// Stats возвращает количество непотреблённых записей по очередям и типам.
func (r *DLQRepo) Stats(ctx context.Context) ([]QueueStat, error) {
	query := `
		SELECT queue, job_kind, COUNT(*)
		FROM dead_letter_jobs
		WHERE consumed_at IS NULL
		GROUP BY queue, job_kind
		ORDER BY queue, job_kind
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dlq stats: %w", err)
	}
	defer rows.Close()

	var stats []QueueStat
	for rows.Next() {
		var s QueueStat
		if err := rows.Scan(&s.Queue, &s.JobKind, &s.Count); err != nil {
			return nil, fmt.Errorf("scan dlq stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func scanDLQEntry(row pgx.Row) (*domain.DeadLetterEntry, error) {
	var e domain.DeadLetterEntry
	var jobData []byte

	err := row.Scan(
		&e.ID,
		&e.Queue,
		&e.JobKind,
		&jobData,
		&e.Error,
		&e.Attempts,
		&e.TenantID,
		&e.MovedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan dead letter entry: %w", err)
	}

	e.JobData = json.RawMessage(jobData)
	return &e, nil
}
