package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/repo"
)

// TTL-классы по типу операции. Эфемерные операции (уведомления) живут
// коротко; операции с постоянным real-world эффектом (минт, захват
// оплаты) хранятся год — повтор через месяцы всё ещё должен увидеть
// сохранённый результат.
const (
	ttlEphemeral = 24 * time.Hour
	ttlPermanent = 365 * 24 * time.Hour
)

// TTLFor возвращает срок жизни записи для типа job.
func TTLFor(kind domain.JobKind) time.Duration {
	switch kind {
	case domain.KindPaymentCapture, domain.KindPaymentRefund, domain.KindTicketMint:
		// Необратимый внешний эффект — запись должна пережить любые повторы.
		return ttlPermanent
	default:
		return ttlEphemeral
	}
}

// CheckResult — итог атомарного CheckAndStore.
type CheckResult struct {
	// Existed — операция уже выполнялась, Result — её сохранённый итог.
	Existed bool

	// Result — сохранённый результат (свой или победившего конкурента).
	Result json.RawMessage
}

// Store — durable кэш результатов завершённых операций.
//
// Каждый processor до выполнения необратимого side effect проверяет
// ключ; после успеха — сохраняет результат. Гонка двух попыток на одном
// ключе схлопывается атомарным insert-if-absent на уровне БД.
type Store struct {
	repo   *repo.IdempotencyRepo
	logger *slog.Logger
}

// NewStore создаёт Store.
func NewStore(r *repo.IdempotencyRepo, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: r, logger: logger.With("component", "idempotency")}
}

// Check возвращает сохранённый результат операции или nil, если операция
// ещё не выполнялась (или запись истекла).
func (s *Store) Check(ctx context.Context, key string) (json.RawMessage, error) {
	rec, err := s.repo.Get(ctx, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("check idempotency key: %w", err)
	}
	return rec.Result, nil
}

// Store сохраняет результат завершённой операции с TTL по типу job.
// Если конкурент успел раньше — это не ошибка, его результат побеждает.
func (s *Store) Store(ctx context.Context, key string, queue domain.Queue, kind domain.JobKind, result json.RawMessage) error {
	_, err := s.CheckAndStore(ctx, key, queue, kind, result)
	return err
}

// CheckAndStore — атомарная комбинация check+store: единый conditional
// insert. Два конкурентных вызова с одним ключом оба получают результат,
// но Existed=false видит ровно один.
func (s *Store) CheckAndStore(ctx context.Context, key string, queue domain.Queue, kind domain.JobKind, result json.RawMessage) (CheckResult, error) {
	rec := &domain.IdempotencyRecord{
		Key:       key,
		Queue:     queue,
		JobKind:   kind,
		Result:    result,
		ExpiresAt: time.Now().Add(TTLFor(kind)),
	}

	winner, inserted, err := s.repo.InsertIfAbsent(ctx, rec)
	if err != nil {
		return CheckResult{}, fmt.Errorf("check-and-store %s: %w", key, err)
	}

	if !inserted {
		s.logger.Debug("idempotency key already stored",
			"key", key,
			"kind", kind,
		)
	}

	return CheckResult{
		Existed: !inserted,
		Result:  winner.Result,
	}, nil
}
