package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/repo"
)

const alertTimeout = 5 * time.Second

// Store — хранилище DLQ-записей. Реализуется repo.DLQRepo.
type Store interface {
	Insert(ctx context.Context, e *domain.DeadLetterEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetterEntry, error)
	List(ctx context.Context, queue domain.Queue, limit int) ([]domain.DeadLetterEntry, error)
	MarkConsumed(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) ([]repo.QueueStat, error)
}

// Publisher — публикация job обратно в рабочую очередь при retry.
// Реализуется mq.Publisher.
type Publisher interface {
	PublishRaw(ctx context.Context, queue domain.Queue, body json.RawMessage) error
}

// Alerter — внешний канал алертинга для критических очередей.
// Вызов не должен блокировать или валить запись в DLQ.
type Alerter interface {
	Alert(ctx context.Context, entry *domain.DeadLetterEntry) error
}

// Service — dead-letter queue: терминальный сток jobs, исчерпавших
// бюджет попыток, с операторскими retry/bulk-операциями.
type Service struct {
	store     Store
	publisher Publisher
	alerter   Alerter
	logger    *slog.Logger
}

// Config — конфигурация Service.
type Config struct {
	Store     Store
	Publisher Publisher

	// Alerter — опционально; nil — алерты только в лог.
	Alerter Alerter

	Logger *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		alerter:   cfg.Alerter,
		logger:    logger.With("component", "dlq"),
	}
}

// Move переносит job в DLQ. Терминальное действие: вызывается, когда
// Attempts достиг MaxAttempts или processor вернул non-retryable ошибку.
//
// raw — оригинальный job байт-в-байт, каким он пришёл из транспорта;
// retry публикует именно его. Для критических очередей поднимается
// алерт — синхронно, но сбой алертинга не валит запись.
//
// Move идемпотентен: повтор для job, уже лежащего в DLQ, успешен
// без второй записи и без второго алерта.
func (s *Service) Move(ctx context.Context, raw json.RawMessage, job *domain.Job, cause error) error {
	entry := &domain.DeadLetterEntry{
		ID:       job.ID,
		Queue:    job.Queue,
		JobKind:  job.Kind,
		JobData:  raw,
		Error:    cause.Error(),
		Attempts: job.Attempts,
		TenantID: job.TenantID,
		MovedAt:  time.Now(),
	}

	if err := s.store.Insert(ctx, entry); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			// Redelivery job, уже лежащего в DLQ: запись одна,
			// повторная доставка просто подтверждается.
			s.logger.Info("job already in dead letter queue", "job_id", job.ID)
			return nil
		}
		return fmt.Errorf("move job %s to dlq: %w", job.ID, err)
	}

	s.logger.Error("job moved to dead letter queue",
		"job_id", job.ID,
		"queue", job.Queue,
		"kind", job.Kind,
		"tenant", job.TenantID,
		"attempts", job.Attempts,
		"error", cause,
	)

	if job.Queue.IsCritical() {
		s.alert(ctx, entry)
	}
	return nil
}

// alert зовёт внешний канал. Паника или ошибка алертера не
// распространяется — запись в DLQ уже состоялась.
func (s *Service) alert(ctx context.Context, entry *domain.DeadLetterEntry) {
	if s.alerter == nil {
		s.logger.Warn("critical queue job dead-lettered, no alerter configured",
			"job_id", entry.ID,
			"queue", entry.Queue,
		)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("alerter panicked", "job_id", entry.ID, "panic", r)
		}
	}()

	alertCtx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()

	if err := s.alerter.Alert(alertCtx, entry); err != nil {
		s.logger.Error("failed to send dlq alert", "job_id", entry.ID, "error", err)
	}
}

// Retry повторно публикует сохранённый job в его исходную очередь
// без изменений и помечает DLQ-запись потреблённой.
func (s *Service) Retry(ctx context.Context, id uuid.UUID) error {
	entry, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get dlq entry %s: %w", id, err)
	}

	if err := s.publisher.PublishRaw(ctx, entry.Queue, entry.JobData); err != nil {
		return fmt.Errorf("republish dlq entry %s: %w", id, err)
	}

	if err := s.store.MarkConsumed(ctx, id); err != nil {
		return fmt.Errorf("mark dlq entry consumed %s: %w", id, err)
	}

	s.logger.Info("dead letter job re-enqueued", "job_id", id, "queue", entry.Queue)
	return nil
}

// BulkResult — итог bulk-операции.
type BulkResult struct {
	Succeeded []uuid.UUID       `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"` // id → причина
}

// BulkRetry повторяет набор записей. Сбой одной записи не останавливает
// остальные.
func (s *Service) BulkRetry(ctx context.Context, ids []uuid.UUID) BulkResult {
	return s.bulk(ids, func(id uuid.UUID) error { return s.Retry(ctx, id) })
}

// BulkDelete удаляет набор записей окончательно.
func (s *Service) BulkDelete(ctx context.Context, ids []uuid.UUID) BulkResult {
	return s.bulk(ids, func(id uuid.UUID) error { return s.store.Delete(ctx, id) })
}

func (s *Service) bulk(ids []uuid.UUID, op func(uuid.UUID) error) BulkResult {
	res := BulkResult{Failed: make(map[string]string)}

	for _, id := range ids {
		if err := op(id); err != nil {
			res.Failed[id.String()] = err.Error()
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}

	if len(res.Failed) == 0 {
		res.Failed = nil
	}
	return res
}

// List возвращает непотреблённые записи для инспекции.
func (s *Service) List(ctx context.Context, queue domain.Queue, limit int) ([]domain.DeadLetterEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.store.List(ctx, queue, limit)
}

// Stats возвращает счётчики записей по очередям и типам jobs.
func (s *Service) Stats(ctx context.Context) ([]repo.QueueStat, error) {
	return s.store.Stats(ctx)
}
