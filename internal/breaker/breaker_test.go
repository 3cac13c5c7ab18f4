package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock — управляемое время для тестов переходов.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(t *testing.T, cfg Config) (*Breaker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	b := New("stripe", cfg)
	b.now = clock.Now
	return b, clock
}

var errBoom = errors.New("boom")

func failingOp(ctx context.Context) error { return errBoom }
func okOp(ctx context.Context) error      { return nil }

func TestBreaker_OpensAfterFailureThreshold(t *testing.T) {
	b, _ := newTestBreaker(t, Config{FailureThreshold: 3})

	for i := 0; i < 3; i++ {
		if b.State() != StateClosed {
			t.Fatalf("breaker should be CLOSED before threshold, got %s", b.State())
		}
		if err := b.Execute(context.Background(), failingOp); !errors.Is(err, errBoom) {
			t.Fatalf("expected operation error, got %v", err)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after %d failures, got %s", 3, b.State())
	}
}

func TestBreaker_SuccessResetsFailureCounter(t *testing.T) {
	b, _ := newTestBreaker(t, Config{FailureThreshold: 3})

	// Два сбоя, успех, ещё два сбоя — порог не достигнут.
	b.Execute(context.Background(), failingOp)
	b.Execute(context.Background(), failingOp)
	b.Execute(context.Background(), okOp)
	b.Execute(context.Background(), failingOp)
	b.Execute(context.Background(), failingOp)

	if b.State() != StateClosed {
		t.Fatal("success should reset consecutive failures, breaker must stay CLOSED")
	}

	snap := b.Snapshot()
	if snap.Failures != 2 {
		t.Errorf("expected 2 consecutive failures, got %d", snap.Failures)
	}
}

func TestBreaker_OpenShortCircuits(t *testing.T) {
	b, clock := newTestBreaker(t, Config{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
	})

	b.Execute(context.Background(), failingOp)
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", b.State())
	}

	// До истечения ResetTimeout операция не вызывается.
	clock.Advance(500 * time.Millisecond)
	calls := 0
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("operation must not be invoked while OPEN, called %d times", calls)
	}
}

func TestBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	b, clock := newTestBreaker(t, Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		ResetTimeout:     time.Second,
	})

	b.Execute(context.Background(), failingOp)

	// ResetTimeout истёк — вызов идёт к зависимости и закрывает breaker.
	clock.Advance(time.Second)
	calls := 0
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("operation should be invoked in HALF_OPEN, called %d times", calls)
	}
	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after success in HALF_OPEN, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(t, Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		ResetTimeout:     time.Second,
	})

	b.Execute(context.Background(), failingOp)
	clock.Advance(time.Second)

	// Один успех в HALF_OPEN — порога 2 недостаточно.
	b.Execute(context.Background(), okOp)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected HALF_OPEN, got %s", b.State())
	}

	// Сбой в HALF_OPEN — сразу обратно в OPEN, successes обнулены.
	b.Execute(context.Background(), failingOp)
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN after failure in HALF_OPEN, got %s", b.State())
	}
	if snap := b.Snapshot(); snap.Successes != 0 {
		t.Errorf("consecutive successes should be reset, got %d", snap.Successes)
	}

	// openedAt перештампован — вызов сразу после снова отклоняется.
	clock.Advance(500 * time.Millisecond)
	if err := b.Execute(context.Background(), okOp); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen after re-open, got %v", err)
	}
}

func TestBreaker_SuccessThresholdCloses(t *testing.T) {
	b, clock := newTestBreaker(t, Config{
		FailureThreshold: 1,
		SuccessThreshold: 3,
		ResetTimeout:     time.Second,
	})

	b.Execute(context.Background(), failingOp)
	clock.Advance(time.Second)

	for i := 0; i < 3; i++ {
		if err := b.Execute(context.Background(), okOp); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after 3 successes, got %s", b.State())
	}
	snap := b.Snapshot()
	if snap.Failures != 0 || snap.Successes != 0 {
		t.Errorf("counters should be zeroed on close: %+v", snap)
	}
}

func TestBreaker_OperationTimeoutCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(t, Config{
		FailureThreshold: 1,
		OperationTimeout: 20 * time.Millisecond,
	})

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if !errors.Is(err, ErrOperationTimeout) {
		t.Fatalf("expected ErrOperationTimeout, got %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("timeout must count as failure, expected OPEN, got %s", b.State())
	}
}

func TestBreaker_ParentCancellationDoesNotCount(t *testing.T) {
	b, _ := newTestBreaker(t, Config{FailureThreshold: 1})

	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	defer close(block)

	err := b.Execute(ctx, func(context.Context) error {
		cancel()
		<-block
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("cancelled caller must not trip the breaker, got %s", b.State())
	}
}

func TestBreaker_ManualReset(t *testing.T) {
	b, _ := newTestBreaker(t, Config{FailureThreshold: 1})

	b.Execute(context.Background(), failingOp)
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", b.State())
	}

	b.Reset()

	if b.State() != StateClosed {
		t.Fatalf("expected CLOSED after Reset, got %s", b.State())
	}
	snap := b.Snapshot()
	if snap.Failures != 0 || snap.Successes != 0 {
		t.Errorf("Reset should zero both counters: %+v", snap)
	}
}

func TestBreaker_ConcurrentExecute(t *testing.T) {
	b, _ := newTestBreaker(t, Config{FailureThreshold: 50})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if fail {
					b.Execute(context.Background(), failingOp)
				} else {
					b.Execute(context.Background(), okOp)
				}
			}
		}(i%2 == 0)
	}
	wg.Wait()

	// Инвариант: состояние валидно, счётчики не отрицательные.
	snap := b.Snapshot()
	if snap.Failures < 0 || snap.Successes < 0 {
		t.Errorf("counters must not go negative: %+v", snap)
	}
	switch snap.State {
	case StateClosed, StateOpen, StateHalfOpen:
	default:
		t.Errorf("invalid state %s", snap.State)
	}
}

func TestRegistry_GetCreatesOnce(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1})

	b1 := r.Get("stripe")
	b2 := r.Get("stripe")
	if b1 != b2 {
		t.Fatal("Get should return the same breaker for the same name")
	}

	b1.Execute(context.Background(), failingOp)
	if !r.Reset("stripe") {
		t.Fatal("Reset should find existing breaker")
	}
	if b1.State() != StateClosed {
		t.Fatalf("expected CLOSED after registry reset, got %s", b1.State())
	}

	if r.Reset("unknown") {
		t.Error("Reset of unknown breaker should return false")
	}

	if got := len(r.Snapshots()); got != 1 {
		t.Errorf("expected 1 snapshot, got %d", got)
	}
}
