package domain

import "time"

// Refill пополняет bucket по прошедшему времени.
// Tokens никогда не превышает BucketSize. У приостановленного bucket
// (emergency stop) refill выключен.
func (b *LimiterBucket) Refill(now time.Time) {
	if b.Suspended {
		b.LastRefillAt = now
		return
	}

	elapsed := now.Sub(b.LastRefillAt).Seconds()
	if elapsed <= 0 {
		return
	}

	b.Tokens = min(b.BucketSize, b.Tokens+elapsed*b.RefillRate)
	b.LastRefillAt = now
}

// CanAdmit возвращает true, если после refill есть целый токен
// и лимит конкурентности не исчерпан.
func (b *LimiterBucket) CanAdmit() bool {
	return !b.Suspended && b.Tokens >= 1 && b.Concurrent < b.MaxConcurrent
}

// Consume списывает один токен и занимает слот конкурентности.
// Вызывается только после CanAdmit.
func (b *LimiterBucket) Consume() {
	b.Tokens--
	b.Concurrent++
}

// WaitFor оценивает время до появления следующего токена.
// Используется callers для точного backoff вместо угадывания.
func (b *LimiterBucket) WaitFor() time.Duration {
	if b.Tokens >= 1 {
		return 0
	}
	if b.RefillRate <= 0 || b.Suspended {
		// Токены не пополняются — осмысленной оценки нет.
		return time.Minute
	}
	seconds := (1 - b.Tokens) / b.RefillRate
	return time.Duration(seconds * float64(time.Second))
}
