package core

import (
	"context"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type (
	BalanceStore interface {
		FindBalance(ctx context.Context, vaultId uuid.UUID, mint, owner string) (*Balance, error)
		UpsertBalance(ctx context.Context, balance *Balance) error
		ListBalances(ctx context.Context, vaultId uuid.UUID, mint string) ([]*Balance, error)
	}

	// Balance is the share count of one holder for one vault asset.
	Balance struct {
		VaultId uuid.UUID `json:"vaultId"`
		Mint    string    `json:"mint"`
		Owner   string    `json:"owner"`
		Amount  uint64    `json:"amount"`
	}
)

func NewBalance(vaultId uuid.UUID, mint, owner string) *Balance {
	return &Balance{
		VaultId: vaultId,
		Mint:    mint,
		Owner:   owner,
	}
}

func FindOrCreateBalance(ctx context.Context, store BalanceStore, vaultId uuid.UUID, mint, owner string) (*Balance, error) {
	balance, err := store.FindBalance(ctx, vaultId, mint, owner)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			balance = NewBalance(vaultId, mint, owner)
			if err = store.UpsertBalance(ctx, balance); err != nil {
				return nil, err
			}
			return balance, nil
		}
		return nil, err
	}
	return balance, nil
}

func (b *Balance) Clone() *Balance {
	return &Balance{
		VaultId: b.VaultId,
		Mint:    b.Mint,
		Owner:   b.Owner,
		Amount:  b.Amount,
	}
}

func (b *Balance) Add(share uint64) error {
	amount, err := utils.AddUint64(b.Amount, share)
	if err != nil {
		return err
	}
	b.Amount = amount
	return nil
}

func (b *Balance) Sub(share uint64) error {
	amount, err := utils.SubUint64(b.Amount, share)
	if err != nil {
		return err
	}
	b.Amount = amount
	return nil
}
