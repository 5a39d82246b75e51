package core

import (
	"context"

	"github.com/SmonkeyMonkey/abracadabra/utils"
	"github.com/gofrs/uuid"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

type AmountShareOut struct {
	AmountOut uint64 `json:"amountOut"`
	ShareOut  uint64 `json:"shareOut"`
}

type ShareTransfer struct {
	To    string `json:"to"`
	Share uint64 `json:"share"`
}

// Deposit moves tokens from the from token account into the vault and
// credits shares to holder to. Exactly one of amount and share is used:
// share wins when non zero.
func (e *Engine) Deposit(ctx context.Context, log Log, vaultId uuid.UUID, mint, from, signer, to string, amount, share uint64) (*AmountShareOut, error) {
	out := &AmountShareOut{}
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		result, err := e.deposit(ctx, rec, vaultId, mint, from, signer, to, amount, share)
		if err != nil {
			return err
		}
		*out = *result
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Msgf("deposit %s: %d tokens for %d shares to %s", mint, out.AmountOut, out.ShareOut, to)
	return out, nil
}

func (e *Engine) deposit(ctx context.Context, rec *recorder, vaultId uuid.UUID, mint, from, signer, to string, amount, share uint64) (*AmountShareOut, error) {
	vault, err := e.loadVault(ctx, vaultId)
	if err != nil {
		return nil, err
	}
	total, err := e.loadTotal(ctx, vaultId, mint)
	if err != nil {
		return nil, err
	}
	source, err := e.store.GetTokenAccount(ctx, from)
	if err != nil {
		return nil, errors.Wrapf(err, "token account %s", from)
	}
	if source.Mint != mint {
		return nil, ErrMintMismatch
	}
	if err := allowed(ctx, e.store, vault, source.Owner, signer); err != nil {
		return nil, err
	}
	if total.Amount.Elastic.IsZero() {
		supply, err := e.store.MintSupply(ctx, mint)
		if err != nil {
			return nil, err
		}
		if supply == 0 {
			return nil, ErrBentoBoxNoTokens
		}
	}

	shareInternal, amountInternal := share, amount
	if shareInternal == 0 {
		if shareInternal, err = total.ToShare(amountInternal, false); err != nil {
			return nil, err
		}
		totalBase, err := utils.CheckedAdd(&total.Amount.Base, uint256.NewInt(shareInternal))
		if err != nil {
			return nil, err
		}
		if totalBase.Lt(uint256.NewInt(vault.MinimumShareBalance)) {
			return &AmountShareOut{}, nil
		}
		if shareInternal == 0 && amountInternal > 0 {
			return nil, errors.Wrapf(ErrDepositZeroShare, "%d tokens", amountInternal)
		}
	} else {
		if amountInternal, err = total.ToAmount(shareInternal, true); err != nil {
			return nil, err
		}
	}

	skimmable, err := e.skimmable(ctx, total)
	if err != nil {
		return nil, err
	}
	// Only deposits out of the vault's own token account claim the
	// unaccounted surplus, and only up to that surplus.
	if from == total.TokenAccount {
		if uint256.NewInt(amount).Gt(skimmable) {
			return nil, ErrDepositSkimTooMuch
		}
	}

	if _, err := total.Amount.AddElasticBase(amountInternal, shareInternal); err != nil {
		return nil, err
	}
	total.UpdatedAt = e.now()
	if err := e.store.UpsertTotal(ctx, total); err != nil {
		return nil, err
	}

	balance, err := FindOrCreateBalance(ctx, e.store, vaultId, mint, to)
	if err != nil {
		return nil, err
	}
	if err := balance.Add(shareInternal); err != nil {
		return nil, err
	}
	if err := e.store.UpsertBalance(ctx, balance); err != nil {
		return nil, err
	}

	if err := TransferTokens(ctx, e.store, from, total.TokenAccount, amountInternal); err != nil {
		return nil, err
	}

	rec.record(EventDeposit, vaultId, mint).WithParties(source.Owner, to).WithAmounts(amountInternal, shareInternal)
	return &AmountShareOut{AmountOut: amountInternal, ShareOut: shareInternal}, nil
}

// skimmable is the part of the vault's holdings not accounted for in Total.
func (e *Engine) skimmable(ctx context.Context, total *Total) (*uint256.Int, error) {
	held, err := e.tokenBalanceOf(ctx, total)
	if err != nil {
		return nil, err
	}
	return utils.CheckedSub(held, &total.Amount.Elastic)
}

// tokenBalanceOf is what the vault holds for total: its idle token account
// plus what it believes the strategy holds.
func (e *Engine) tokenBalanceOf(ctx context.Context, total *Total) (*uint256.Int, error) {
	idle, err := TokenAmount(ctx, e.store, total.TokenAccount)
	if err != nil {
		return nil, err
	}
	data, err := e.loadStrategyData(ctx, total.VaultId, total.Mint)
	if err != nil {
		return nil, err
	}
	return utils.CheckedAdd(uint256.NewInt(idle), uint256.NewInt(data.Balance))
}

// Withdraw burns shares of holder from and sends the tokens to the to token
// account. Exactly one of amount and share is used: share wins when non zero.
func (e *Engine) Withdraw(ctx context.Context, log Log, vaultId uuid.UUID, mint, from, signer, to string, amount, share uint64) (*AmountShareOut, error) {
	out := &AmountShareOut{}
	err := e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		result, err := e.withdraw(ctx, rec, vaultId, mint, from, signer, to, amount, share)
		if err != nil {
			return err
		}
		*out = *result
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Msgf("withdraw %s: %d tokens for %d shares from %s", mint, out.AmountOut, out.ShareOut, from)
	return out, nil
}

func (e *Engine) withdraw(ctx context.Context, rec *recorder, vaultId uuid.UUID, mint, from, signer, to string, amount, share uint64) (*AmountShareOut, error) {
	vault, err := e.loadVault(ctx, vaultId)
	if err != nil {
		return nil, err
	}
	if err := allowed(ctx, e.store, vault, from, signer); err != nil {
		return nil, err
	}
	total, err := e.loadTotal(ctx, vaultId, mint)
	if err != nil {
		return nil, err
	}

	shareInternal, amountInternal := share, amount
	if shareInternal == 0 {
		if shareInternal, err = total.ToShare(amountInternal, true); err != nil {
			return nil, err
		}
	} else {
		if amountInternal, err = total.ToAmount(shareInternal, false); err != nil {
			return nil, err
		}
	}

	if _, err := total.Amount.SubElasticBase(amountInternal, shareInternal); err != nil {
		return nil, err
	}
	if !total.Amount.Base.IsZero() && total.Amount.Base.Lt(uint256.NewInt(vault.MinimumShareBalance)) {
		return nil, ErrWithdrawCannotEmpty
	}
	total.UpdatedAt = e.now()
	if err := e.store.UpsertTotal(ctx, total); err != nil {
		return nil, err
	}

	balance, err := e.store.FindBalance(ctx, vaultId, mint, from)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrWrongIntegerSubtraction
		}
		return nil, err
	}
	if err := balance.Sub(shareInternal); err != nil {
		return nil, err
	}
	if err := e.store.UpsertBalance(ctx, balance); err != nil {
		return nil, err
	}

	if err := TransferTokens(ctx, e.store, total.TokenAccount, to, amountInternal); err != nil {
		return nil, err
	}

	rec.record(EventWithdraw, vaultId, mint).WithParties(from, to).WithAmounts(amountInternal, shareInternal)
	return &AmountShareOut{AmountOut: amountInternal, ShareOut: shareInternal}, nil
}

// Transfer moves shares between two holders without touching Total.
func (e *Engine) Transfer(ctx context.Context, log Log, vaultId uuid.UUID, mint, from, signer, to string, share uint64) error {
	return e.TransferMultiple(ctx, log, vaultId, mint, from, signer, []ShareTransfer{{To: to, Share: share}})
}

func (e *Engine) TransferMultiple(ctx context.Context, log Log, vaultId uuid.UUID, mint, from, signer string, transfers []ShareTransfer) error {
	return e.run(ctx, log, func(ctx context.Context, rec *recorder) error {
		vault, err := e.loadVault(ctx, vaultId)
		if err != nil {
			return err
		}
		if err := allowed(ctx, e.store, vault, from, signer); err != nil {
			return err
		}
		for _, t := range transfers {
			if err := e.transfer(ctx, rec, vaultId, mint, from, t.To, t.Share); err != nil {
				return err
			}
		}
		return nil
	})
}

// transfer moves share without an authorization check.
func (e *Engine) transfer(ctx context.Context, rec *recorder, vaultId uuid.UUID, mint, from, to string, share uint64) error {
	source, err := e.store.FindBalance(ctx, vaultId, mint, from)
	if err != nil {
		if isNotFound(err) {
			return ErrWrongIntegerSubtraction
		}
		return err
	}
	if err := source.Sub(share); err != nil {
		return err
	}
	if err := e.store.UpsertBalance(ctx, source); err != nil {
		return err
	}

	destination, err := FindOrCreateBalance(ctx, e.store, vaultId, mint, to)
	if err != nil {
		return err
	}
	if err := destination.Add(share); err != nil {
		return err
	}
	if err := e.store.UpsertBalance(ctx, destination); err != nil {
		return err
	}

	rec.record(EventTransfer, vaultId, mint).WithParties(from, to).WithAmounts(0, share)
	return nil
}
