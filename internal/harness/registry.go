package harness

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/Bastion/internal/domain"
)

// Processor — бизнес-обработчик одного типа job.
//
// payload — типизированный payload (результат domain.DecodePayload).
// Возвращаемый результат сохраняется в idempotency store: повтор job
// с тем же ключом получит его из кэша без повторного side effect.
//
// Постоянные отказы processor помечает через domain.NonRetryable —
// harness отправит job в DLQ, не тратя бюджет повторов.
type Processor interface {
	Process(ctx context.Context, job *domain.Job, payload any) (json.RawMessage, error)
}

// ProcessorFunc — адаптер функции к интерфейсу Processor.
type ProcessorFunc func(ctx context.Context, job *domain.Job, payload any) (json.RawMessage, error)

// Process вызывает f.
func (f ProcessorFunc) Process(ctx context.Context, job *domain.Job, payload any) (json.RawMessage, error) {
	return f(ctx, job, payload)
}

// Registry — реестр processors по типу job.
type Registry struct {
	processors map[domain.JobKind]Processor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[domain.JobKind]Processor)}
}

// Register добавляет processor для типа job.
func (r *Registry) Register(kind domain.JobKind, p Processor) {
	r.processors[kind] = p
}

// Get возвращает processor для типа job.
func (r *Registry) Get(kind domain.JobKind) (Processor, error) {
	p, ok := r.processors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, kind)
	}
	return p, nil
}
