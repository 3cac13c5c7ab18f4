package domain

import (
	"testing"
	"time"
)

func testBucket() *LimiterBucket {
	return &LimiterBucket{
		Service:       "stripe",
		Tokens:        5,
		BucketSize:    10,
		RefillRate:    2, // токена в секунду
		LastRefillAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Concurrent:    0,
		MaxConcurrent: 3,
	}
}

func TestBucket_RefillAddsTokensOverTime(t *testing.T) {
	b := testBucket()

	b.Refill(b.LastRefillAt.Add(2 * time.Second))

	if b.Tokens != 9 {
		t.Errorf("expected 5 + 2s*2/s = 9 tokens, got %v", b.Tokens)
	}
}

func TestBucket_RefillCapsAtBucketSize(t *testing.T) {
	b := testBucket()

	b.Refill(b.LastRefillAt.Add(time.Hour))

	if b.Tokens != b.BucketSize {
		t.Errorf("tokens must never exceed bucket size: %v > %v", b.Tokens, b.BucketSize)
	}
}

func TestBucket_RefillIgnoresClockSkew(t *testing.T) {
	b := testBucket()

	b.Refill(b.LastRefillAt.Add(-time.Second))

	if b.Tokens != 5 {
		t.Errorf("negative elapsed must not change tokens, got %v", b.Tokens)
	}
}

func TestBucket_AdmissionRequiresWholeToken(t *testing.T) {
	b := testBucket()
	b.Tokens = 0.9

	if b.CanAdmit() {
		t.Error("fractional token must not admit")
	}

	b.Tokens = 1
	if !b.CanAdmit() {
		t.Error("one whole token must admit")
	}
}

func TestBucket_AdmissionRespectsConcurrency(t *testing.T) {
	b := testBucket()
	b.Concurrent = b.MaxConcurrent

	if b.CanAdmit() {
		t.Error("must not admit at max concurrency even with tokens available")
	}
}

func TestBucket_ConsumeDecrements(t *testing.T) {
	b := testBucket()

	b.Consume()

	if b.Tokens != 4 {
		t.Errorf("expected 4 tokens after consume, got %v", b.Tokens)
	}
	if b.Concurrent != 1 {
		t.Errorf("expected 1 concurrent slot taken, got %d", b.Concurrent)
	}
}

func TestBucket_SuspendedNeverAdmits(t *testing.T) {
	b := testBucket()
	b.Suspended = true
	b.Tokens = b.BucketSize

	if b.CanAdmit() {
		t.Error("suspended bucket must not admit")
	}

	// Refill выключен на время suspension.
	b.Tokens = 0
	b.Refill(b.LastRefillAt.Add(time.Minute))
	if b.Tokens != 0 {
		t.Errorf("suspended bucket must not refill, got %v tokens", b.Tokens)
	}
}

func TestBucket_WaitFor(t *testing.T) {
	b := testBucket()
	b.Tokens = 0.5

	// (1 - 0.5) / 2 в секунду = 250ms.
	if got := b.WaitFor(); got != 250*time.Millisecond {
		t.Errorf("expected 250ms wait, got %v", got)
	}

	b.Tokens = 2
	if got := b.WaitFor(); got != 0 {
		t.Errorf("token available, expected zero wait, got %v", got)
	}
}

// Ограничение допусков за фиксированное окно: bucketSize + refillRate*window.
func TestBucket_AdmissionsBoundedOverWindow(t *testing.T) {
	b := testBucket()
	b.Tokens = b.BucketSize
	b.MaxConcurrent = 1000

	now := b.LastRefillAt
	admitted := 0

	// 10 секунд, попытка каждые 10ms.
	for i := 0; i < 1000; i++ {
		now = now.Add(10 * time.Millisecond)
		b.Refill(now)
		if b.CanAdmit() {
			b.Consume()
			b.Concurrent-- // вызов мгновенно завершается
			admitted++
		}
	}

	bound := int(b.BucketSize + b.RefillRate*10)
	if admitted > bound {
		t.Errorf("admissions %d exceed bound %d over window", admitted, bound)
	}
}
