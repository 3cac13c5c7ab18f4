package saga

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func step(name string, fail bool, execLog, compLog *[]string) Step {
	return Step{
		Name: name,
		Execute: func(ctx context.Context) (any, error) {
			if fail {
				return nil, fmt.Errorf("step %s failed", name)
			}
			*execLog = append(*execLog, name)
			return "result-" + name, nil
		},
		Compensate: func(ctx context.Context, result any) error {
			*compLog = append(*compLog, name)
			if result != "result-"+name {
				return fmt.Errorf("compensation for %s got wrong result %v", name, result)
			}
			return nil
		},
	}
}

func TestCoordinator_EmptySteps(t *testing.T) {
	c := New(nil)

	res := c.Execute(context.Background(), nil)

	if !res.Success {
		t.Error("empty saga should succeed")
	}
	if len(res.Results) != 0 {
		t.Errorf("expected empty results, got %v", res.Results)
	}
	if res.Compensated {
		t.Error("empty saga should not compensate")
	}
}

func TestCoordinator_AllStepsSucceed(t *testing.T) {
	c := New(nil)
	var execLog, compLog []string

	res := c.Execute(context.Background(), []Step{
		step("reserve-inventory", false, &execLog, &compLog),
		step("charge-payment", false, &execLog, &compLog),
		step("record-order", false, &execLog, &compLog),
	})

	if !res.Success {
		t.Fatalf("expected success, got error %v", res.Err)
	}
	if res.Compensated {
		t.Error("successful saga must not compensate")
	}
	if len(compLog) != 0 {
		t.Errorf("no compensation expected, got %v", compLog)
	}

	// Результаты в порядке выполнения.
	want := []any{"result-reserve-inventory", "result-charge-payment", "result-record-order"}
	if len(res.Results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(res.Results))
	}
	for i := range want {
		if res.Results[i] != want[i] {
			t.Errorf("result[%d] = %v, want %v", i, res.Results[i], want[i])
		}
	}
}

func TestCoordinator_CompensatesInReverseOrder(t *testing.T) {
	c := New(nil)
	var execLog, compLog []string

	res := c.Execute(context.Background(), []Step{
		step("reserve-inventory", false, &execLog, &compLog),
		step("charge-payment", false, &execLog, &compLog),
		step("send-confirmation", true, &execLog, &compLog),
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if !res.Compensated {
		t.Error("expected compensated=true")
	}
	if res.FailedStep != "send-confirmation" {
		t.Errorf("failed step = %s, want send-confirmation", res.FailedStep)
	}
	if len(res.Results) != 0 {
		t.Errorf("results must be cleared on failure, got %v", res.Results)
	}

	// Компенсация строго в обратном порядке, упавший шаг не компенсируется.
	want := []string{"charge-payment", "reserve-inventory"}
	if len(compLog) != len(want) {
		t.Fatalf("compensation log = %v, want %v", compLog, want)
	}
	for i := range want {
		if compLog[i] != want[i] {
			t.Errorf("compensation order: got %v, want %v", compLog, want)
			break
		}
	}
}

func TestCoordinator_FirstStepFails(t *testing.T) {
	c := New(nil)
	var execLog, compLog []string

	res := c.Execute(context.Background(), []Step{
		step("reserve-inventory", true, &execLog, &compLog),
		step("charge-payment", false, &execLog, &compLog),
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Compensated {
		t.Error("no succeeded steps, nothing to compensate")
	}
	if len(execLog) != 0 {
		t.Errorf("later steps must not run after failure, got %v", execLog)
	}
}

func TestCoordinator_CompensationFailureDoesNotHaltSweep(t *testing.T) {
	c := New(nil)
	var compLog []string

	ok := func(name string) Step {
		return Step{
			Name:    name,
			Execute: func(ctx context.Context) (any, error) { return name, nil },
			Compensate: func(ctx context.Context, result any) error {
				compLog = append(compLog, name)
				if name == "charge-payment" {
					return errors.New("refund failed")
				}
				return nil
			},
		}
	}

	res := c.Execute(context.Background(), []Step{
		ok("reserve-inventory"),
		ok("charge-payment"),
		{
			Name:    "mint-ticket",
			Execute: func(ctx context.Context) (any, error) { return nil, errors.New("mint down") },
		},
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if !res.Compensated {
		t.Error("expected compensated=true")
	}

	// Сбой компенсации charge-payment не останавливает откат reserve-inventory.
	want := []string{"charge-payment", "reserve-inventory"}
	if len(compLog) != 2 || compLog[0] != want[0] || compLog[1] != want[1] {
		t.Errorf("compensation log = %v, want %v", compLog, want)
	}
}

func TestCoordinator_NilCompensateSkipped(t *testing.T) {
	c := New(nil)

	res := c.Execute(context.Background(), []Step{
		{
			Name:    "read-config",
			Execute: func(ctx context.Context) (any, error) { return "cfg", nil },
			// Без Compensate — чтение нечего откатывать.
		},
		{
			Name:    "charge",
			Execute: func(ctx context.Context) (any, error) { return nil, errBoomSaga },
		},
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if !res.Compensated {
		t.Error("compensation sweep over succeeded steps still counts")
	}
}

var errBoomSaga = errors.New("boom")

func TestCoordinator_StatelessAcrossCalls(t *testing.T) {
	c := New(nil)
	var execLog, compLog []string

	c.Execute(context.Background(), []Step{
		step("a", false, &execLog, &compLog),
		step("b", true, &execLog, &compLog),
	})

	// Повторный вызов не несёт остаточного состояния.
	execLog, compLog = nil, nil
	res := c.Execute(context.Background(), []Step{
		step("a", false, &execLog, &compLog),
	})

	if !res.Success {
		t.Fatalf("expected success, got %v", res.Err)
	}
	if len(res.Results) != 1 {
		t.Errorf("expected 1 result, got %d", len(res.Results))
	}
	if len(compLog) != 0 {
		t.Errorf("no compensation expected, got %v", compLog)
	}
}
