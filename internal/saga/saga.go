package saga

import (
	"context"
	"log/slog"
)

// Step — один обратимый шаг saga.
//
// Execute выполняет шаг и возвращает результат; Compensate откатывает
// эффект шага, получая результат его же Execute. Compensate вызывается
// только для шагов, чей Execute уже завершился успешно.
type Step struct {
	// Name — имя шага для логов и результатов.
	Name string

	// Execute выполняет шаг.
	Execute func(ctx context.Context) (any, error)

	// Compensate откатывает шаг. result — значение, возвращённое Execute.
	// Может быть nil для шагов без отката (например, чтение).
	Compensate func(ctx context.Context, result any) error
}

// Result — итог выполнения saga.
type Result struct {
	// Success — все шаги выполнились.
	Success bool

	// Results — результаты Execute каждого шага по порядку.
	// При сбое очищается: откаченные шаги — не результаты.
	Results []any

	// Compensated — была предпринята хотя бы одна компенсация.
	Compensated bool

	// Err — ошибка шага, остановившего выполнение.
	Err error

	// FailedStep — имя упавшего шага.
	FailedStep string
}

// Coordinator выполняет упорядоченный список обратимых шагов
// и компенсирует в обратном порядке при частичном сбое.
//
// Coordinator не хранит состояние между вызовами Execute — каждое
// выполнение saga ограничено временем обработки одного job на одном
// воркере.
type Coordinator struct {
	logger *slog.Logger
}

// New создаёт Coordinator.
func New(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{logger: logger}
}

// Execute выполняет шаги строго по порядку.
//
// На первом упавшем шаге прямое выполнение останавливается и для каждого
// уже успешного шага в строго обратном порядке вызывается Compensate
// с его собственным результатом. Ошибка компенсации логируется и не
// прерывает компенсацию более ранних шагов. Упавший шаг никогда
// не компенсируется.
//
// Пустой список шагов — тривиальный успех с пустыми результатами.
func (c *Coordinator) Execute(ctx context.Context, steps []Step) Result {
	completed := make([]any, 0, len(steps))

	for i, step := range steps {
		out, err := step.Execute(ctx)
		if err != nil {
			c.logger.Warn("saga step failed",
				"step", step.Name,
				"index", i,
				"error", err,
			)
			compensated := c.compensate(ctx, steps[:i], completed)
			return Result{
				Success:     false,
				Results:     []any{},
				Compensated: compensated,
				Err:         err,
				FailedStep:  step.Name,
			}
		}
		completed = append(completed, out)
	}

	return Result{
		Success: true,
		Results: completed,
	}
}

// compensate откатывает succeeded шаги в обратном порядке.
// Возвращает true, если хотя бы одна компенсация была предпринята.
func (c *Coordinator) compensate(ctx context.Context, steps []Step, results []any) bool {
	attempted := len(steps) > 0

	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.Compensate == nil {
			// Шаг без отката — пропускаем, но откат считается предпринятым.
			continue
		}

		if err := step.Compensate(ctx, results[i]); err != nil {
			// Ошибка компенсации не останавливает откат более ранних шагов.
			c.logger.Error("saga compensation failed",
				"step", step.Name,
				"index", i,
				"error", err,
			)
			continue
		}

		c.logger.Info("saga step compensated", "step", step.Name, "index", i)
	}

	return attempted
}
