package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/repo"
)

// ServiceLimit — параметры bucket'а для внешнего сервиса.
// Передаются явно в конструктор — компонент не читает ambient-конфиг.
type ServiceLimit struct {
	Service       string
	BucketSize    float64
	RefillRate    float64 // токенов в секунду
	MaxConcurrent int
}

// Limiter — распределённый token bucket поверх реляционного хранилища.
//
// Авторитетное состояние bucket'а — строка rate_limiters, мутируемая
// под row-level lock. Все worker-процессы разделяют один bucket на
// внешний сервис: суммарная скорость исходящих вызовов ограничена
// глобально, а не на процесс.
type Limiter struct {
	repo   *repo.LimiterRepo
	logger *slog.Logger
	limits map[string]ServiceLimit
}

// New создаёт Limiter с заданными лимитами сервисов.
func New(r *repo.LimiterRepo, limits []ServiceLimit, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}

	byService := make(map[string]ServiceLimit, len(limits))
	for _, l := range limits {
		byService[l.Service] = l
	}

	return &Limiter{
		repo:   r,
		logger: logger.With("component", "ratelimit"),
		limits: byService,
	}
}

// EnsureBuckets создаёт строки buckets для всех сконфигурированных
// сервисов. Вызывается при старте воркера.
func (l *Limiter) EnsureBuckets(ctx context.Context) error {
	for _, limit := range l.limits {
		err := l.repo.Ensure(ctx, &domain.LimiterBucket{
			Service:       limit.Service,
			BucketSize:    limit.BucketSize,
			RefillRate:    limit.RefillRate,
			MaxConcurrent: limit.MaxConcurrent,
		})
		if err != nil {
			return fmt.Errorf("ensure bucket %s: %w", limit.Service, err)
		}
	}
	return nil
}

// Acquire пытается взять токен для вызова сервиса.
//
// Атомарно, под row-level lock: refill по прошедшему времени, затем —
// если есть целый токен и слот конкурентности — списание. При отказе
// refill всё равно сохраняется. Возвращает false без ошибки, когда
// токенов нет: caller берёт WaitTime и откладывает job.
func (l *Limiter) Acquire(ctx context.Context, service, tenantID string) (bool, error) {
	admitted := false
	take := func(b *domain.LimiterBucket) error {
		b.Refill(time.Now())
		if b.CanAdmit() {
			b.Consume()
			admitted = true
		}
		return nil
	}

	_, err := l.repo.WithBucket(ctx, service, tenantID, take)
	if errors.Is(err, repo.ErrNotFound) {
		limit, known := l.limits[service]
		if !known {
			// Незнакомый сервис без сконфигурированного лимита не троттлим.
			return true, nil
		}

		// Строки для (service, tenant) ещё нет — создаём и повторяем.
		ensureErr := l.repo.Ensure(ctx, &domain.LimiterBucket{
			Service:       service,
			TenantID:      tenantID,
			BucketSize:    limit.BucketSize,
			RefillRate:    limit.RefillRate,
			MaxConcurrent: limit.MaxConcurrent,
		})
		if ensureErr != nil {
			return false, fmt.Errorf("acquire token %s: %w", service, ensureErr)
		}
		_, err = l.repo.WithBucket(ctx, service, tenantID, take)
	}
	if err != nil {
		return false, fmt.Errorf("acquire token %s: %w", service, err)
	}

	if !admitted {
		l.logger.Debug("token refused", "service", service, "tenant", tenantID)
	}
	return admitted, nil
}

// Release освобождает слот конкурентности. Вызывается в defer после
// завершения вызова — независимо от его исхода, иначе слоты утекают.
func (l *Limiter) Release(ctx context.Context, service, tenantID string) {
	if _, known := l.limits[service]; !known {
		return
	}
	if err := l.repo.ReleaseSlot(ctx, service, tenantID); err != nil {
		// Утечку слота компенсирует GREATEST(...,0) и операторский Reset.
		l.logger.Warn("failed to release slot", "service", service, "error", err)
	}
}

// WaitTime оценивает время до появления токена. Используется harness'ом
// для точного переноса job вместо слепого backoff.
func (l *Limiter) WaitTime(ctx context.Context, service, tenantID string) (time.Duration, error) {
	b, err := l.repo.Get(ctx, service, tenantID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("wait time %s: %w", service, err)
	}

	// Оцениваем по свежему refill, не мутируя строку.
	b.Refill(time.Now())
	return b.WaitFor(), nil
}

// CheckState — ответ операторской проверки сервиса.
type CheckState struct {
	Bucket   domain.LimiterBucket `json:"bucket"`
	Admits   bool                 `json:"admits"`
	WaitTime time.Duration        `json:"wait_time"`
}

// Check возвращает, пропустил бы сервис вызов прямо сейчас, не
// потребляя токен. Для операторской диагностики.
func (l *Limiter) Check(ctx context.Context, service, tenantID string) (*CheckState, error) {
	b, err := l.repo.Get(ctx, service, tenantID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	if err != nil {
		return nil, fmt.Errorf("check limiter %s: %w", service, err)
	}

	b.Refill(time.Now())
	return &CheckState{
		Bucket:   *b,
		Admits:   b.CanAdmit(),
		WaitTime: b.WaitFor(),
	}, nil
}

// Status возвращает состояние всех buckets для операторского API.
func (l *Limiter) Status(ctx context.Context) ([]domain.LimiterBucket, error) {
	return l.repo.List(ctx)
}

// Reset возвращает bucket к сконфигурированным параметрам: полный
// запас токенов, нулевая конкурентность, suspension снят.
func (l *Limiter) Reset(ctx context.Context, service, tenantID string) error {
	limit, known := l.limits[service]

	_, err := l.repo.WithBucket(ctx, service, tenantID, func(b *domain.LimiterBucket) error {
		if known {
			b.BucketSize = limit.BucketSize
			b.RefillRate = limit.RefillRate
			b.MaxConcurrent = limit.MaxConcurrent
		}
		b.Tokens = b.BucketSize
		b.Concurrent = 0
		b.Suspended = false
		b.LastRefillAt = time.Now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset limiter %s: %w", service, err)
	}

	l.logger.Info("limiter reset", "service", service, "tenant", tenantID)
	return nil
}

// EmergencyStop мгновенно закрывает сервис: токены обнуляются, refill
// выключается до операторского Reset. Для инцидентов у провайдера.
func (l *Limiter) EmergencyStop(ctx context.Context, service, tenantID string) error {
	_, err := l.repo.WithBucket(ctx, service, tenantID, func(b *domain.LimiterBucket) error {
		b.Tokens = 0
		b.Suspended = true
		b.LastRefillAt = time.Now()
		return nil
	})
	if err != nil {
		return fmt.Errorf("emergency stop %s: %w", service, err)
	}

	l.logger.Warn("limiter emergency stop", "service", service, "tenant", tenantID)
	return nil
}
