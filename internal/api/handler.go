package api

import (
	"log/slog"

	"github.com/shaiso/Bastion/internal/breaker"
	"github.com/shaiso/Bastion/internal/dlq"
	"github.com/shaiso/Bastion/internal/ratelimit"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	dlq      *dlq.Service
	limiter  *ratelimit.Limiter
	breakers *breaker.Registry
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	DLQ      *dlq.Service
	Limiter  *ratelimit.Limiter
	Breakers *breaker.Registry
	Logger   *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		dlq:      cfg.DLQ,
		limiter:  cfg.Limiter,
		breakers: cfg.Breakers,
		logger:   logger,
	}
}
