package domain

import (
	"math/rand/v2"
	"time"
)

// RetryPolicy — политика повторов для типа job.
//
// Задержка перед попыткой n: BaseDelay * Multiplier^(n-1) + jitter,
// ограничено MaxDelay. Jitter — случайная добавка до JitterFraction
// от вычисленной задержки, чтобы повторы одновременно упавших jobs
// не приходили синхронной волной.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Multiplier     float64
	MaxDelay       time.Duration
	JitterFraction float64
}

// DefaultRetryPolicy возвращает политику по умолчанию для типа job.
// Денежные операции повторяются дольше и реже, уведомления — дешёвые
// и агрессивные.
func DefaultRetryPolicy(kind JobKind) RetryPolicy {
	switch kind {
	case KindPaymentCapture, KindPaymentRefund:
		return RetryPolicy{
			MaxAttempts:    5,
			BaseDelay:      2 * time.Second,
			Multiplier:     2,
			MaxDelay:       5 * time.Minute,
			JitterFraction: 0.2,
		}
	case KindTicketMint:
		return RetryPolicy{
			MaxAttempts:    7,
			BaseDelay:      time.Second,
			Multiplier:     2,
			MaxDelay:       2 * time.Minute,
			JitterFraction: 0.2,
		}
	default:
		return RetryPolicy{
			MaxAttempts:    3,
			BaseDelay:      500 * time.Millisecond,
			Multiplier:     2,
			MaxDelay:       30 * time.Second,
			JitterFraction: 0.5,
		}
	}
}

// Delay вычисляет задержку перед попыткой attempt (начиная с 1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if delay >= maxDelay {
			delay = maxDelay
			break
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	if p.JitterFraction > 0 {
		jitter := time.Duration(rand.Float64() * p.JitterFraction * float64(delay))
		delay += jitter
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	return delay
}
