package core

import (
	"context"

	"github.com/SmonkeyMonkey/abracadabra/rebase"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
)

type (
	TotalStore interface {
		CreateTotal(ctx context.Context, total *Total) error
		UpsertTotal(ctx context.Context, total *Total) error
		GetTotal(ctx context.Context, vaultId uuid.UUID, mint string) (*Total, error)
		ListTotals(ctx context.Context, vaultId uuid.UUID) ([]*Total, error)
	}

	// Total is the ledger of one asset held by a vault.
	Total struct {
		VaultId      uuid.UUID     `json:"vaultId"`
		Mint         string        `json:"mint"`
		Amount       rebase.Rebase `json:"amount"`
		TokenAccount string        `json:"tokenAccount"`

		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}
)

func NewTotal(clk clock.Clock, vault *Vault, mint string) *Total {
	now := clk.Now().Unix()
	return &Total{
		VaultId:      vault.Id,
		Mint:         mint,
		TokenAccount: vault.TokenAccountAddress(mint),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (t *Total) Clone() *Total {
	return &Total{
		VaultId:      t.VaultId,
		Mint:         t.Mint,
		Amount:       t.Amount,
		TokenAccount: t.TokenAccount,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (t *Total) ToShare(amount uint64, roundUp bool) (uint64, error) {
	return t.Amount.ToBase(amount, roundUp)
}

func (t *Total) ToAmount(share uint64, roundUp bool) (uint64, error) {
	return t.Amount.ToElastic(share, roundUp)
}
