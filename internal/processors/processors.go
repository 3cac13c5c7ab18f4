package processors

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/gateway"
	"github.com/shaiso/Bastion/internal/harness"
	"github.com/shaiso/Bastion/internal/saga"
)

// PaymentGateway — платёжный провайдер.
type PaymentGateway interface {
	Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
	Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error)
}

// Inventory — inventory-сервис билетной платформы.
type Inventory interface {
	Reserve(ctx context.Context, orderID, eventID string, quantity int) (*gateway.Reservation, error)
	Release(ctx context.Context, reservationID string) error
	ConfirmOrder(ctx context.Context, orderID, chargeID string) error
	CancelOrder(ctx context.Context, orderID, refundID string) error
	AttachTicket(ctx context.Context, ticketID, mintAddress, signature string) error
}

// Minter — минт-сервис NFT-билетов.
type Minter interface {
	Mint(ctx context.Context, req gateway.MintRequest) (*gateway.MintResult, error)
	Burn(ctx context.Context, mintAddress string) error
}

// Notifier — почтовый шлюз.
type Notifier interface {
	Send(ctx context.Context, recipient, template string, variables map[string]string) (string, error)
}

// Deps — внешние сервисы всех processors.
type Deps struct {
	Payments  PaymentGateway
	Inventory Inventory
	Minter    Minter
	Notifier  Notifier
	Logger    *slog.Logger
}

// Register регистрирует все processors платформы в реестре harness'а.
func Register(r *harness.Registry, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	coordinator := saga.New(logger)

	r.Register(domain.KindPaymentCapture, NewCaptureProcessor(deps.Payments, deps.Inventory, coordinator))
	r.Register(domain.KindPaymentRefund, NewRefundProcessor(deps.Payments, deps.Inventory, coordinator))
	r.Register(domain.KindTicketMint, NewMintProcessor(deps.Minter, deps.Inventory, coordinator))
	r.Register(domain.KindNotification, NewNotificationProcessor(deps.Notifier))
}

// payloadAs приводит декодированный payload к ожидаемому типу.
// Несоответствие — ошибка маршрутизации, повтор не поможет.
func payloadAs[T any](payload any) (T, error) {
	typed, ok := payload.(T)
	if !ok {
		var zero T
		return zero, domain.NonRetryable(
			fmt.Errorf("unexpected payload type %T", payload))
	}
	return typed, nil
}
