package core

import (
	"context"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/pkg/errors"
)

type (
	TokenStore interface {
		GetTokenAccount(ctx context.Context, address string) (*TokenAccount, error)
		UpsertTokenAccount(ctx context.Context, account *TokenAccount) error
		// MintSupply is the sum held by every account of mint.
		MintSupply(ctx context.Context, mint string) (uint64, error)
	}

	// TokenAccount is the ground truth of a token balance. The engine
	// re-reads it after every capability call instead of caching amounts.
	TokenAccount struct {
		Address string `json:"address"`
		Mint    string `json:"mint"`
		Owner   string `json:"owner"`
		Amount  uint64 `json:"amount"`
	}
)

func NewTokenAccount(address, mint, owner string) *TokenAccount {
	return &TokenAccount{
		Address: address,
		Mint:    mint,
		Owner:   owner,
	}
}

func (t *TokenAccount) Clone() *TokenAccount {
	return &TokenAccount{
		Address: t.Address,
		Mint:    t.Mint,
		Owner:   t.Owner,
		Amount:  t.Amount,
	}
}

// TransferTokens moves amount between two accounts of the same mint.
func TransferTokens(ctx context.Context, store TokenStore, from, to string, amount uint64) error {
	if from == to {
		_, err := store.GetTokenAccount(ctx, from)
		return err
	}
	source, err := store.GetTokenAccount(ctx, from)
	if err != nil {
		return errors.Wrapf(err, "token account %s", from)
	}
	destination, err := store.GetTokenAccount(ctx, to)
	if err != nil {
		return errors.Wrapf(err, "token account %s", to)
	}
	if source.Mint != destination.Mint {
		return ErrMintMismatch
	}
	if source.Amount < amount {
		return errors.Wrapf(ErrInsufficientFunds, "%s holds %d, need %d", from, source.Amount, amount)
	}
	if destination.Amount, err = utils.AddUint64(destination.Amount, amount); err != nil {
		return err
	}
	source.Amount -= amount

	if err := store.UpsertTokenAccount(ctx, source); err != nil {
		return err
	}
	return store.UpsertTokenAccount(ctx, destination)
}

// TokenAmount reads the current amount held by address.
func TokenAmount(ctx context.Context, store TokenStore, address string) (uint64, error) {
	account, err := store.GetTokenAccount(ctx, address)
	if err != nil {
		return 0, errors.Wrapf(err, "token account %s", address)
	}
	return account.Amount, nil
}
