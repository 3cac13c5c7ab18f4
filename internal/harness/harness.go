package harness

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Bastion/internal/breaker"
	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/idempotency"
	"github.com/shaiso/Bastion/internal/telemetry"
)

// Idempotency — durable кэш результатов операций.
type Idempotency interface {
	Check(ctx context.Context, key string) (json.RawMessage, error)
	Store(ctx context.Context, key string, queue domain.Queue, kind domain.JobKind, result json.RawMessage) error
}

// Limiter — распределённый rate limiter внешних сервисов.
type Limiter interface {
	Acquire(ctx context.Context, service, tenantID string) (bool, error)
	Release(ctx context.Context, service, tenantID string)
	WaitTime(ctx context.Context, service, tenantID string) (time.Duration, error)
}

// DeadLetters — приёмник окончательно сбойных jobs.
type DeadLetters interface {
	Move(ctx context.Context, raw json.RawMessage, job *domain.Job, cause error) error
}

// TransportOps — операции транспорта над одной доставкой.
// Harness вызывает ровно одну терминальную операцию на доставку.
type TransportOps interface {
	// Ack — job обработан, удалить из очереди.
	Ack() error

	// Retry — перенести с задержкой, списав попытку.
	Retry(ctx context.Context, after time.Duration) error

	// Postpone — перенести с задержкой без списания попытки.
	Postpone(ctx context.Context, after time.Duration) error

	// Discard — удалить без повтора (после записи в DLQ).
	Discard() error

	// Requeue — вернуть брокеру немедленно, без подсчёта попытки.
	Requeue() error
}

// Config — конфигурация Harness.
type Config struct {
	// InfraRetryDelay — задержка переноса при инфраструктурном сбое
	// (недоступна БД idempotency или limiter). Попытка не списывается.
	InfraRetryDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.InfraRetryDelay <= 0 {
		c.InfraRetryDelay = 5 * time.Second
	}
}

// Harness прогоняет каждую доставку через полный конвейер устойчивости:
//
//	validate → idempotency check → rate limit → breaker → processor
//	→ store result + ack | retry с backoff | DLQ
//
// Сбои самого конвейера (БД недоступна) переносят job без списания
// попытки: бюджет повторов расходуется только на отказы обработчика
// и открытый breaker.
type Harness struct {
	registry    *Registry
	idem        Idempotency
	limiter     Limiter
	breakers    *breaker.Registry
	deadLetters DeadLetters
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	cfg         Config

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// New создаёт Harness.
func New(
	registry *Registry,
	idem Idempotency,
	limiter Limiter,
	breakers *breaker.Registry,
	deadLetters DeadLetters,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
	cfg Config,
) *Harness {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Harness{
		registry:    registry,
		idem:        idem,
		limiter:     limiter,
		breakers:    breakers,
		deadLetters: deadLetters,
		metrics:     metrics,
		logger:      logger.With("component", "harness"),
		cfg:         cfg,
	}
}

// Handle обрабатывает одну доставку. Вызывается из consumer'а очереди.
func (h *Harness) Handle(ctx context.Context, job *domain.Job, body json.RawMessage, ops TransportOps) {
	if err := h.admit(); err != nil {
		// Shutdown: вернуть брокеру, доставит другому воркеру.
		h.logger.Debug("delivery refused", "job_id", job.ID, "error", err)
		ops.Requeue()
		return
	}
	defer h.wg.Done()

	logger := telemetry.WithJob(h.logger, job.ID.String(), string(job.Queue), string(job.Kind), job.TenantID)
	start := time.Now()
	policy := domain.DefaultRetryPolicy(job.Kind)

	if err := job.Validate(); err != nil {
		logger.Error("invalid job", "error", err)
		h.deadLetter(ctx, body, job, err, ops, logger)
		return
	}

	payload, err := domain.DecodePayload(job)
	if err != nil {
		logger.Error("undecodable payload", "error", err)
		h.deadLetter(ctx, body, job, err, ops, logger)
		return
	}

	proc, err := h.registry.Get(job.Kind)
	if err != nil {
		logger.Error("no processor registered", "error", err)
		h.deadLetter(ctx, body, job, err, ops, logger)
		return
	}

	if job.IdempotencyKey == "" {
		// Processors передают этот же ключ внешним провайдерам,
		// поэтому производный ключ пишется обратно в job.
		job.IdempotencyKey = idempotency.KeyForJob(job, payload)
	}
	key := job.IdempotencyKey

	cached, err := h.idem.Check(ctx, key)
	if err != nil {
		logger.Warn("idempotency check failed, postponing", "error", err)
		h.postpone(ctx, ops, h.cfg.InfraRetryDelay, logger)
		return
	}
	if cached != nil {
		h.metrics.IdempotentHits.WithLabelValues(string(job.Queue), string(job.Kind)).Inc()
		logger.Info("duplicate suppressed", "idempotency_key", key)
		ops.Ack()
		return
	}

	service := job.Kind.Service()

	admitted, err := h.limiter.Acquire(ctx, service, job.TenantID)
	if err != nil {
		logger.Warn("rate limiter unavailable, postponing", "error", err)
		h.postpone(ctx, ops, h.cfg.InfraRetryDelay, logger)
		return
	}
	if !admitted {
		h.metrics.LimiterRefusals.WithLabelValues(service).Inc()
		wait, werr := h.limiter.WaitTime(ctx, service, job.TenantID)
		if werr != nil || wait <= 0 {
			wait = h.cfg.InfraRetryDelay
		}
		logger.Info("rate limited, postponing", "service", service, "wait", wait)
		h.postpone(ctx, ops, wait, logger)
		return
	}
	defer h.limiter.Release(ctx, service, job.TenantID)

	br := h.breakers.Get(service)
	var result json.RawMessage
	execErr := br.Execute(ctx, func(ctx context.Context) error {
		res, perr := proc.Process(ctx, job, payload)
		if perr != nil {
			return perr
		}
		result = res
		return nil
	})
	h.metrics.SetBreakerState(service, string(br.State()))
	h.metrics.ObserveJob(string(job.Queue), string(job.Kind), start, execErr)

	if execErr == nil {
		if serr := h.idem.Store(ctx, key, job.Queue, job.Kind, result); serr != nil {
			// Side effect уже выполнен: повтор хуже потерянной записи.
			logger.Error("result not stored, duplicates possible",
				"idempotency_key", key,
				"error", serr,
			)
		}
		logger.Info("job processed", "duration", time.Since(start))
		ops.Ack()
		return
	}

	if ctx.Err() != nil {
		// Отмена контекста доставки (shutdown) — не сбой обработчика:
		// попытка не списывается, job возвращается брокеру.
		logger.Warn("delivery abandoned mid-flight, requeueing", "error", execErr)
		ops.Requeue()
		return
	}

	switch {
	case errors.Is(execErr, breaker.ErrOpen):
		// Fail fast: попытка списывается, зависимость не трогали.
		h.metrics.BreakerRejections.WithLabelValues(service).Inc()
		logger.Warn("breaker open", "service", service)
		h.retryOrBury(ctx, job, body, execErr, policy, ops, logger)

	case errors.Is(execErr, domain.ErrNonRetryable):
		logger.Error("permanent failure", "error", execErr)
		h.deadLetter(ctx, body, job, execErr, ops, logger)

	default:
		logger.Warn("job attempt failed", "error", execErr, "attempt", job.Attempts)
		h.retryOrBury(ctx, job, body, execErr, policy, ops, logger)
	}
}

// retryOrBury переносит job с backoff либо хоронит в DLQ при
// исчерпанном бюджете попыток.
func (h *Harness) retryOrBury(
	ctx context.Context,
	job *domain.Job,
	body json.RawMessage,
	cause error,
	policy domain.RetryPolicy,
	ops TransportOps,
	logger *slog.Logger,
) {
	if job.Exhausted() {
		logger.Error("attempts exhausted",
			"attempts", job.Attempts,
			"max_attempts", job.MaxAttempts,
			"error", cause,
		)
		h.deadLetter(ctx, body, job, cause, ops, logger)
		return
	}

	delay := policy.Delay(job.Attempts)
	h.metrics.JobsRetried.WithLabelValues(string(job.Queue), string(job.Kind)).Inc()
	logger.Info("retry scheduled", "attempt", job.Attempts, "delay", delay)

	if err := ops.Retry(ctx, delay); err != nil {
		logger.Error("failed to schedule retry", "error", err)
	}
}

// deadLetter записывает job в DLQ и подтверждает доставку.
// Если запись не удалась, доставка возвращается брокеру: терять job
// нельзя, redelivery повторит перенос.
func (h *Harness) deadLetter(
	ctx context.Context,
	body json.RawMessage,
	job *domain.Job,
	cause error,
	ops TransportOps,
	logger *slog.Logger,
) {
	if err := h.deadLetters.Move(ctx, body, job, cause); err != nil {
		logger.Error("failed to move job to DLQ, requeueing", "error", err)
		ops.Requeue()
		return
	}
	h.metrics.JobsDeadLetter.WithLabelValues(string(job.Queue), string(job.Kind)).Inc()
	ops.Discard()
}

func (h *Harness) postpone(ctx context.Context, ops TransportOps, after time.Duration, logger *slog.Logger) {
	if err := ops.Postpone(ctx, after); err != nil {
		logger.Error("failed to postpone job", "error", err)
	}
}

// admit регистрирует доставку в in-flight учёте.
// После Stop возвращает ErrStopped.
func (h *Harness) admit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return ErrStopped
	}
	h.wg.Add(1)
	return nil
}

// Stop прекращает приём новых доставок и ждёт завершения in-flight
// jobs не дольше drainTimeout. Незавершённые jobs остаются у брокера
// неподтверждёнными и будут доставлены повторно.
func (h *Harness) Stop(drainTimeout time.Duration) {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("all in-flight jobs drained")
	case <-time.After(drainTimeout):
		h.logger.Warn("drain timeout, abandoning in-flight jobs",
			"timeout", drainTimeout,
		)
	}
}
