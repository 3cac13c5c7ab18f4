package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/gateway"
	"github.com/shaiso/Bastion/internal/saga"
)

// CaptureProcessor — захват оплаты заказа билетов.
//
// Saga из трёх шагов: удержание билетов в inventory, захват оплаты
// у провайдера, подтверждение заказа. Сбой на любом шаге откатывает
// предыдущие: снимает удержание и возвращает деньги.
type CaptureProcessor struct {
	payments    PaymentGateway
	inventory   Inventory
	coordinator *saga.Coordinator
}

// NewCaptureProcessor создаёт CaptureProcessor.
func NewCaptureProcessor(payments PaymentGateway, inventory Inventory, coordinator *saga.Coordinator) *CaptureProcessor {
	return &CaptureProcessor{
		payments:    payments,
		inventory:   inventory,
		coordinator: coordinator,
	}
}

// CaptureOutcome — результат захвата оплаты, сохраняется в idempotency store.
type CaptureOutcome struct {
	OrderID       string `json:"order_id"`
	ReservationID string `json:"reservation_id"`
	ChargeID      string `json:"charge_id"`
	AmountCents   int64  `json:"amount_cents"`
}

// Process выполняет saga захвата оплаты.
func (p *CaptureProcessor) Process(ctx context.Context, job *domain.Job, payload any) (json.RawMessage, error) {
	capture, err := payloadAs[*domain.PaymentCapturePayload](payload)
	if err != nil {
		return nil, err
	}

	// Шаг подтверждения ссылается на результат шага charge —
	// результат передаётся между шагами через замыкание.
	var charged *gateway.ChargeResult

	steps := []saga.Step{
		{
			Name: "reserve-tickets",
			Execute: func(ctx context.Context) (any, error) {
				return p.inventory.Reserve(ctx, capture.OrderID, capture.EventID, capture.Quantity)
			},
			Compensate: func(ctx context.Context, result any) error {
				return p.inventory.Release(ctx, result.(*gateway.Reservation).ReservationID)
			},
		},
		{
			Name: "charge-payment",
			Execute: func(ctx context.Context) (any, error) {
				res, cerr := p.payments.Charge(ctx, gateway.ChargeRequest{
					OrderID:         capture.OrderID,
					AmountCents:     capture.AmountCents,
					Currency:        capture.Currency,
					PaymentMethodID: capture.PaymentMethodID,
					IdempotencyKey:  job.IdempotencyKey,
				})
				if cerr != nil {
					return nil, cerr
				}
				charged = res
				return res, nil
			},
			Compensate: func(ctx context.Context, result any) error {
				charge := result.(*gateway.ChargeResult)
				_, rerr := p.payments.Refund(ctx, gateway.RefundRequest{
					ChargeID:       charge.ChargeID,
					AmountCents:    charge.AmountCents,
					Reason:         "capture rollback",
					IdempotencyKey: job.IdempotencyKey + ":rollback",
				})
				return rerr
			},
		},
		{
			Name: "confirm-order",
			Execute: func(ctx context.Context) (any, error) {
				if cerr := p.inventory.ConfirmOrder(ctx, capture.OrderID, charged.ChargeID); cerr != nil {
					return nil, cerr
				}
				return charged.ChargeID, nil
			},
		},
	}

	result := p.coordinator.Execute(ctx, steps)
	if !result.Success {
		return nil, fmt.Errorf("capture order %s: step %s: %w",
			capture.OrderID, result.FailedStep, result.Err)
	}

	reservation := result.Results[0].(*gateway.Reservation)
	return json.Marshal(CaptureOutcome{
		OrderID:       capture.OrderID,
		ReservationID: reservation.ReservationID,
		ChargeID:      charged.ChargeID,
		AmountCents:   charged.AmountCents,
	})
}

// RefundProcessor — возврат средств по заказу.
//
// Saga из двух шагов: возврат у провайдера, отмена заказа в inventory.
// Возврат сам по себе не откатывается: если отмена заказа не удалась,
// компенсаций нет и job уходит на повтор, где возврат схлопнется на
// idempotency key провайдера.
type RefundProcessor struct {
	payments    PaymentGateway
	inventory   Inventory
	coordinator *saga.Coordinator
}

// NewRefundProcessor создаёт RefundProcessor.
func NewRefundProcessor(payments PaymentGateway, inventory Inventory, coordinator *saga.Coordinator) *RefundProcessor {
	return &RefundProcessor{
		payments:    payments,
		inventory:   inventory,
		coordinator: coordinator,
	}
}

// RefundOutcome — результат возврата, сохраняется в idempotency store.
type RefundOutcome struct {
	OrderID     string `json:"order_id"`
	RefundID    string `json:"refund_id"`
	AmountCents int64  `json:"amount_cents"`
}

// Process выполняет возврат средств.
func (p *RefundProcessor) Process(ctx context.Context, job *domain.Job, payload any) (json.RawMessage, error) {
	refund, err := payloadAs[*domain.PaymentRefundPayload](payload)
	if err != nil {
		return nil, err
	}

	var refunded *gateway.RefundResult
	steps := []saga.Step{
		{
			Name: "refund-payment",
			Execute: func(ctx context.Context) (any, error) {
				res, rerr := p.payments.Refund(ctx, gateway.RefundRequest{
					ChargeID:       refund.ChargeID,
					AmountCents:    refund.AmountCents,
					Reason:         refund.Reason,
					IdempotencyKey: job.IdempotencyKey,
				})
				if rerr != nil {
					return nil, rerr
				}
				refunded = res
				return res, nil
			},
		},
		{
			Name: "cancel-order",
			Execute: func(ctx context.Context) (any, error) {
				return nil, p.inventory.CancelOrder(ctx, refund.OrderID, refunded.RefundID)
			},
		},
	}

	result := p.coordinator.Execute(ctx, steps)
	if !result.Success {
		return nil, fmt.Errorf("refund order %s: step %s: %w",
			refund.OrderID, result.FailedStep, result.Err)
	}

	return json.Marshal(RefundOutcome{
		OrderID:     refund.OrderID,
		RefundID:    refunded.RefundID,
		AmountCents: refunded.AmountCents,
	})
}
