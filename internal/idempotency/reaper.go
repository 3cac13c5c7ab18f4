package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Bastion/internal/repo"
)

// Default configuration values.
const (
	defaultReapSchedule  = "@every 10m"
	defaultReapBatchSize = 1000
	reapTimeout          = 30 * time.Second
)

// Reaper периодически удаляет истёкшие idempotency-записи.
//
// Без reaper'а таблица растёт неограниченно. Работает вне горячего
// пути — достаточно запускать на одном воркере.
type Reaper struct {
	repo      *repo.IdempotencyRepo
	logger    *slog.Logger
	schedule  string
	batchSize int
	cron      *cron.Cron
}

// ReaperConfig — конфигурация Reaper.
type ReaperConfig struct {
	// Schedule — cron-выражение или @every-интервал (default: @every 10m).
	Schedule string

	// BatchSize — сколько записей удалять за проход (default: 1000).
	BatchSize int

	// Logger.
	Logger *slog.Logger
}

// NewReaper создаёт Reaper.
func NewReaper(r *repo.IdempotencyRepo, cfg ReaperConfig) *Reaper {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = defaultReapSchedule
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultReapBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reaper{
		repo:      r,
		logger:    logger.With("component", "idempotency-reaper"),
		schedule:  schedule,
		batchSize: batchSize,
	}
}

// Start запускает периодическую очистку.
func (r *Reaper) Start() error {
	r.cron = cron.New()

	_, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reapTimeout)
		defer cancel()
		r.Reap(ctx)
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.Info("reaper started", "schedule", r.schedule, "batch_size", r.batchSize)
	return nil
}

// Stop останавливает очистку, дожидаясь завершения текущего прохода.
func (r *Reaper) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.logger.Info("reaper stopped")
}

// Reap выполняет один проход очистки. Удаляет батчами, пока есть
// истёкшие записи.
func (r *Reaper) Reap(ctx context.Context) {
	var total int64

	for {
		deleted, err := r.repo.DeleteExpired(ctx, r.batchSize)
		if err != nil {
			r.logger.Error("failed to delete expired keys", "error", err)
			return
		}
		total += deleted
		if deleted < int64(r.batchSize) {
			break
		}
	}

	if total > 0 {
		r.logger.Info("expired idempotency keys reaped", "count", total)
	}
}
