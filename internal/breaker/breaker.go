package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Default configuration values.
const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 3
	defaultResetTimeout     = 30 * time.Second
	defaultOperationTimeout = 10 * time.Second
)

// State — состояние circuit breaker.
type State string

const (
	// StateClosed — операции выполняются нормально.
	StateClosed State = "CLOSED"

	// StateOpen — вызовы отклоняются без обращения к зависимости.
	StateOpen State = "OPEN"

	// StateHalfOpen — пробный режим после resetTimeout.
	StateHalfOpen State = "HALF_OPEN"
)

// Breaker — circuit breaker для одной внешней зависимости.
//
// Состояние процесс-локальное: каждый worker-процесс независимо
// наблюдает сбои и открывает свой breaker. Переходы состояний —
// единое атомарное обновление под mutex, breaker безопасен при
// конкурентных Execute из нескольких горутин.
//
// Машина состояний:
//
//	CLOSED → OPEN       после FailureThreshold последовательных сбоев
//	OPEN → HALF_OPEN    первый вызов после ResetTimeout
//	HALF_OPEN → CLOSED  после SuccessThreshold последовательных успехов
//	HALF_OPEN → OPEN    любой сбой
type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	openedAt      time.Time
	lastChangedAt time.Time

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация breaker. Передаётся явно в конструктор,
// без чтения ambient-состояния процесса.
type Config struct {
	// FailureThreshold — сколько последовательных сбоев открывает breaker.
	FailureThreshold int

	// SuccessThreshold — сколько успехов в HALF_OPEN закрывает breaker.
	SuccessThreshold int

	// ResetTimeout — сколько держать breaker открытым до пробного вызова.
	ResetTimeout time.Duration

	// OperationTimeout — таймаут обёрнутой операции.
	// Таймаут считается сбоем наравне с ошибкой.
	OperationTimeout time.Duration

	// Logger — логгер переходов состояний.
	Logger *slog.Logger
}

// New создаёт breaker для зависимости name.
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaultSuccessThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With("breaker", name),
		state:  StateClosed,
		now:    time.Now,
	}
}

// Execute выполняет op через breaker.
//
// В OPEN возвращает ErrOpen не вызывая op, пока не истёк ResetTimeout.
// Операция оборачивается в context.WithTimeout(OperationTimeout);
// превышение таймаута учитывается как сбой.
func (b *Breaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, b.cfg.OperationTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(opCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-opCtx.Done():
		if cause := ctx.Err(); cause != nil {
			// Отменён родительский контекст — это не сбой
			// зависимости, счётчики не трогаются.
			return cause
		}
		err = fmt.Errorf("%w: %s", ErrOperationTimeout, b.name)
	}

	b.record(err)
	return err
}

// admit решает, пропускать ли вызов, и выполняет переход OPEN → HALF_OPEN.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
		return fmt.Errorf("%w: %s", ErrOpen, b.name)
	}

	// ResetTimeout истёк — пробный режим, этот вызов идёт к зависимости.
	b.transition(StateHalfOpen)
	return nil
}

// record учитывает результат вызова.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.recordSuccess()
	} else {
		b.recordFailure()
	}
}

func (b *Breaker) recordSuccess() {
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.failures = 0
			b.successes = 0
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) recordFailure() {
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.successes = 0
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

// transition меняет состояние. Вызывается только под mu.
func (b *Breaker) transition(next State) {
	prev := b.state
	b.state = next
	b.lastChangedAt = b.now()

	b.logger.Info("breaker state changed",
		"from", prev,
		"to", next,
		"failures", b.failures,
	)
}

// Reset принудительно закрывает breaker и обнуляет счётчики.
// Для ручного вмешательства оператора.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.successes = 0
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// Snapshot — наблюдаемое состояние breaker для операторского API.
type Snapshot struct {
	Name          string    `json:"name"`
	State         State     `json:"state"`
	Failures      int       `json:"consecutive_failures"`
	Successes     int       `json:"consecutive_successes"`
	OpenedAt      time.Time `json:"opened_at,omitzero"`
	LastChangedAt time.Time `json:"last_changed_at,omitzero"`
}

// Snapshot возвращает текущее состояние breaker.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:          b.name,
		State:         b.state,
		Failures:      b.failures,
		Successes:     b.successes,
		OpenedAt:      b.openedAt,
		LastChangedAt: b.lastChangedAt,
	}
}

// State возвращает текущее состояние.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
