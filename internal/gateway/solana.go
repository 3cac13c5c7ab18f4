package gateway

import (
	"context"
	"net/http"
)

// MintRequest — запрос минта NFT-билета.
type MintRequest struct {
	TicketID    string `json:"ticket_id"`
	EventID     string `json:"event_id"`
	OwnerWallet string `json:"owner_wallet"`
	MetadataURI string `json:"metadata_uri"`
}

// MintResult — итог минта.
type MintResult struct {
	// MintAddress — адрес mint-аккаунта NFT.
	MintAddress string `json:"mint_address"`

	// Signature — подпись транзакции в сети.
	Signature string `json:"signature"`
}

// SolanaClient — клиент минт-сервиса NFT-билетов.
//
// Минт-сервис держит авторитет коллекции и подписывает транзакции;
// worker общается с ним по HTTP, не с сетью напрямую.
type SolanaClient struct {
	c *client
}

// NewSolanaClient создаёт SolanaClient.
func NewSolanaClient(cfg ClientConfig) (*SolanaClient, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return &SolanaClient{c: c}, nil
}

// Mint выпускает NFT-билет на кошелёк владельца.
func (s *SolanaClient) Mint(ctx context.Context, req MintRequest) (*MintResult, error) {
	var out MintResult
	if err := s.c.doJSON(ctx, http.MethodPost, "/v1/tickets/mint", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Burn сжигает выпущенный NFT-билет. Используется как компенсация,
// когда запись билета в inventory после минта не удалась.
func (s *SolanaClient) Burn(ctx context.Context, mintAddress string) error {
	body := map[string]string{"mint_address": mintAddress}
	return s.c.doJSON(ctx, http.MethodPost, "/v1/tickets/burn", body, nil)
}
