package gateway

import (
	"context"
	"fmt"
	"net/http"
)

// Reservation — удержание билетов под заказ.
type Reservation struct {
	ReservationID string `json:"reservation_id"`
	OrderID       string `json:"order_id"`
	Quantity      int    `json:"quantity"`
}

// InventoryClient — клиент inventory-сервиса билетной платформы.
// Управляет остатками билетов и статусами заказов.
type InventoryClient struct {
	c *client
}

// NewInventoryClient создаёт InventoryClient.
func NewInventoryClient(cfg ClientConfig) (*InventoryClient, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &InventoryClient{c: c}, nil
}

// Reserve удерживает quantity билетов события под заказ.
func (i *InventoryClient) Reserve(ctx context.Context, orderID, eventID string, quantity int) (*Reservation, error) {
	body := map[string]any{
		"order_id": orderID,
		"event_id": eventID,
		"quantity": quantity,
	}
	var out Reservation
	if err := i.c.doJSON(ctx, http.MethodPost, "/v1/reservations", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Release снимает удержание билетов. Компенсация Reserve.
func (i *InventoryClient) Release(ctx context.Context, reservationID string) error {
	path := fmt.Sprintf("/v1/reservations/%s", reservationID)
	return i.c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ConfirmOrder помечает заказ оплаченным.
func (i *InventoryClient) ConfirmOrder(ctx context.Context, orderID, chargeID string) error {
	path := fmt.Sprintf("/v1/orders/%s/confirm", orderID)
	body := map[string]string{"charge_id": chargeID}
	return i.c.doJSON(ctx, http.MethodPost, path, body, nil)
}

// CancelOrder помечает заказ отменённым после возврата средств.
func (i *InventoryClient) CancelOrder(ctx context.Context, orderID, refundID string) error {
	path := fmt.Sprintf("/v1/orders/%s/cancel", orderID)
	body := map[string]string{"refund_id": refundID}
	return i.c.doJSON(ctx, http.MethodPost, path, body, nil)
}

// AttachTicket записывает адрес выпущенного NFT за билетом.
func (i *InventoryClient) AttachTicket(ctx context.Context, ticketID, mintAddress, signature string) error {
	path := fmt.Sprintf("/v1/tickets/%s/nft", ticketID)
	body := map[string]string{
		"mint_address": mintAddress,
		"signature":    signature,
	}
	return i.c.doJSON(ctx, http.MethodPut, path, body, nil)
}
