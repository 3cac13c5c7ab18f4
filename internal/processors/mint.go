package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shaiso/Bastion/internal/domain"
	"github.com/shaiso/Bastion/internal/gateway"
	"github.com/shaiso/Bastion/internal/saga"
)

// MintProcessor — минт NFT-билета после успешной оплаты.
//
// Saga из двух шагов: выпуск NFT минт-сервисом и запись адреса за
// билетом в inventory. Если запись не удалась, выпущенный NFT
// сжигается — билет без записи в inventory не должен существовать.
type MintProcessor struct {
	minter      Minter
	inventory   Inventory
	coordinator *saga.Coordinator
}

// NewMintProcessor создаёт MintProcessor.
func NewMintProcessor(minter Minter, inventory Inventory, coordinator *saga.Coordinator) *MintProcessor {
	return &MintProcessor{
		minter:      minter,
		inventory:   inventory,
		coordinator: coordinator,
	}
}

// MintOutcome — результат минта, сохраняется в idempotency store.
type MintOutcome struct {
	TicketID    string `json:"ticket_id"`
	MintAddress string `json:"mint_address"`
	Signature   string `json:"signature"`
}

// Process выполняет saga минта билета.
func (p *MintProcessor) Process(ctx context.Context, _ *domain.Job, payload any) (json.RawMessage, error) {
	mint, err := payloadAs[*domain.TicketMintPayload](payload)
	if err != nil {
		return nil, err
	}

	var minted *gateway.MintResult
	steps := []saga.Step{
		{
			Name: "mint-nft",
			Execute: func(ctx context.Context) (any, error) {
				res, merr := p.minter.Mint(ctx, gateway.MintRequest{
					TicketID:    mint.TicketID,
					EventID:     mint.EventID,
					OwnerWallet: mint.OwnerWallet,
					MetadataURI: mint.MetadataURI,
				})
				if merr != nil {
					return nil, merr
				}
				minted = res
				return res, nil
			},
			Compensate: func(ctx context.Context, result any) error {
				return p.minter.Burn(ctx, result.(*gateway.MintResult).MintAddress)
			},
		},
		{
			Name: "attach-ticket",
			Execute: func(ctx context.Context) (any, error) {
				return nil, p.inventory.AttachTicket(ctx, mint.TicketID, minted.MintAddress, minted.Signature)
			},
		},
	}

	result := p.coordinator.Execute(ctx, steps)
	if !result.Success {
		return nil, fmt.Errorf("mint ticket %s: step %s: %w",
			mint.TicketID, result.FailedStep, result.Err)
	}

	return json.Marshal(MintOutcome{
		TicketID:    mint.TicketID,
		MintAddress: minted.MintAddress,
		Signature:   minted.Signature,
	})
}
